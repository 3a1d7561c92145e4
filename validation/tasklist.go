package validation

import "strings"

// MaxListNameLength is the longest accepted task list name.
const MaxListNameLength = 30

// TaskListInput is a task list payload for create and rename.
type TaskListInput struct {
	Name string
}

// TaskList validates a task list payload.
func TaskList(b Bag) (TaskListInput, error) {
	raw, _, err := b.stringField("name", true)
	if err != nil {
		return TaskListInput{}, err
	}
	name := strings.TrimSpace(raw)
	if err := checkText("name", name, 1, MaxListNameLength); err != nil {
		return TaskListInput{}, err
	}
	if err := b.allowOnly("name"); err != nil {
		return TaskListInput{}, err
	}
	return TaskListInput{Name: name}, nil
}
