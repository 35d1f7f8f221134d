package domain

import "time"

// OrderStatus — жизненный цикл заказа.
// SUBMITTED → IN_PROGRESS → READY → COMPLETED, отмена возможна только из SUBMITTED.
type OrderStatus string

const (
	StatusSubmitted  OrderStatus = "SUBMITTED"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusReady      OrderStatus = "READY"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// CanTransition проверяет допустимость перехода статуса.
// Терминальные статусы (COMPLETED, CANCELLED) не имеют исходящих переходов.
func CanTransition(from, to OrderStatus) bool {
	allowed, ok := statusGraph[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

var statusGraph = map[OrderStatus][]OrderStatus{
	StatusSubmitted:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusReady, StatusCancelled},
	StatusReady:      {StatusCompleted},
}

type Order struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Title      string        `json:"title"`
	Note       *string       `json:"note,omitempty"`
	Status     OrderStatus   `json:"status"`
	TotalPrice int64         `json:"total_price"` // в минимальных единицах валюты
	Items      []OrderItem   `json:"items,omitempty"`
	Files      []ProjectFile `json:"files,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Name      string `json:"name"`
	Paper     string `json:"paper"`
	Color     string `json:"color"`
	Binding   string `json:"binding"`
	Copies    int    `json:"copies"`
	PageCount int    `json:"page_count"`
	UnitPrice int64  `json:"unit_price"`
}

// ProjectFile — метаданные zip-архива, загруженного на общий диск.
// Бинарное содержимое живет только у провайдера, локально — ссылка.
type ProjectFile struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Name        string    `json:"name"`
	DriveFileID string    `json:"drive_file_id"`
	ViewLink    string    `json:"view_link"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

type Payment struct {
	ID      string     `json:"id"`
	OrderID string     `json:"order_id"`
	Method  string     `json:"method"`
	Amount  int64      `json:"amount"`
	Status  string     `json:"status"`
	PaidAt  *time.Time `json:"paid_at,omitempty"`
}

// OrderFilter — параметры поиска для staff-маршрутов.
type OrderFilter struct {
	Status OrderStatus
	Email  string
	Query  string // подстрока в title
	Limit  int
}

// SubmitProjectRequest — JSON-часть multipart-формы создания проекта.
type SubmitProjectRequest struct {
	Title string           `json:"title"`
	Note  string           `json:"note"`
	Items []SubmitItemSpec `json:"items"`
}

type SubmitItemSpec struct {
	Name      string `json:"name"`
	Paper     string `json:"paper"`
	Color     string `json:"color"`
	Binding   string `json:"binding"`
	Copies    int    `json:"copies"`
	PageCount int    `json:"page_count"`
}

// UserOrderPatch — что пользователь может поменять в своем заказе.
type UserOrderPatch struct {
	Note   *string `json:"note,omitempty"`
	Cancel bool    `json:"cancel,omitempty"`
}
