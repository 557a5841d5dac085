package task

const RevalidateRetryTaskType = "RevalidateRetryTask"

type RevalidateRetryTask struct {
	Tags       []string `json:"tags"`        // Cache tags that were dropped
	RetryCount int      `json:"retry_count"` // Number of failed warm-up attempts so far
	Error      string   `json:"error"`       // Error message from the last failure
}

func (t *RevalidateRetryTask) TaskType() string {
	return RevalidateRetryTaskType
}

func (t *RevalidateRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
