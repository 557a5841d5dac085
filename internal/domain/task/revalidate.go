package task

import "time"

const RevalidateTaskType = "RevalidateTask"

type RevalidateTask struct {
	Tags         []string  `json:"tags"`          // Cache tags to drop
	DocumentType string    `json:"document_type"` // CMS document type that changed
	DocumentID   string    `json:"document_id"`   // CMS document id, may be empty
	ReceivedAt   time.Time `json:"received_at"`
}

func (t *RevalidateTask) TaskType() string {
	return RevalidateTaskType
}

func (t *RevalidateTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
