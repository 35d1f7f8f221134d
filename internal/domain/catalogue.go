package domain

// PrintOption — позиция прайс-листа, которую клиент показывает в форме заказа.
// Цена за страницу зависит от бумаги и цветности, переплет — фиксированная надбавка.
type PrintOption struct {
	Paper        string `json:"paper"`
	Color        string `json:"color"`
	PricePerPage int64  `json:"price_per_page"`
}

type BindingOption struct {
	Binding string `json:"binding"`
	Price   int64  `json:"price"`
}

type Catalogue struct {
	Papers   []PrintOption   `json:"papers"`
	Bindings []BindingOption `json:"bindings"`
}

// DefaultCatalogue — прайс по умолчанию. Хранить его в БД смысла нет:
// меняется он релизом, а не оператором.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		Papers: []PrintOption{
			{Paper: "A4-80g", Color: "bw", PricePerPage: 3},
			{Paper: "A4-80g", Color: "color", PricePerPage: 15},
			{Paper: "A4-120g", Color: "bw", PricePerPage: 5},
			{Paper: "A4-120g", Color: "color", PricePerPage: 20},
			{Paper: "A3-80g", Color: "bw", PricePerPage: 6},
			{Paper: "A3-80g", Color: "color", PricePerPage: 30},
		},
		Bindings: []BindingOption{
			{Binding: "none", Price: 0},
			{Binding: "staple", Price: 50},
			{Binding: "spiral", Price: 250},
			{Binding: "hardcover", Price: 1500},
		},
	}
}

// PricePerPage возвращает цену страницы для пары бумага+цветность.
func (c Catalogue) PricePerPage(paper, color string) (int64, bool) {
	for _, p := range c.Papers {
		if p.Paper == paper && p.Color == color {
			return p.PricePerPage, true
		}
	}
	return 0, false
}

// BindingPrice возвращает надбавку за переплет.
func (c Catalogue) BindingPrice(binding string) (int64, bool) {
	for _, b := range c.Bindings {
		if b.Binding == binding {
			return b.Price, true
		}
	}
	return 0, false
}
