package models

// Job is the workflow (kanban) job that automations run against. The records
// below are owned by the host application; the engine only reads them and
// moves jobs between stages.
type Job struct {
	ID         string   `json:"id"`
	WorkflowID string   `json:"workflow_id"`
	StageID    string   `json:"stage_id"`
	Title      string   `json:"title"`
	Priority   string   `json:"priority,omitempty"`
	DueDate    string   `json:"due_date,omitempty"`
	Contact    *Contact `json:"contact,omitempty"`
	Invoice    *Invoice `json:"invoice,omitempty"`
}

type Stage struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}

type Contact struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Number         string `json:"number,omitempty"`
	Email          string `json:"email,omitempty"`
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
}

type Invoice struct {
	ID          string  `json:"id"`
	Number      string  `json:"number"`
	TotalAmount float64 `json:"total_amount"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
