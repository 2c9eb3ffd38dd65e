package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTriggerDue = "automation.trigger.due"

// TriggerDuePayload identifies one queued trigger record. TriggerKey travels
// with the task so the worker can detect configuration changes that happened
// while the record waited.
type TriggerDuePayload struct {
	InspectionID  string    `json:"inspectionId"`
	TriggerIndex  int       `json:"triggerIndex"`
	TriggerKey    string    `json:"triggerKey"`
	ExecutionTime time.Time `json:"executionTime"`
}

func NewTriggerDueTask(payload TriggerDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTriggerDue, data), nil
}

func ParseTriggerDuePayload(task *asynq.Task) (TriggerDuePayload, error) {
	var payload TriggerDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TriggerDuePayload{}, err
	}
	return payload, nil
}
