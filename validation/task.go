package validation

import (
	"strings"
	"time"
)

const (
	MaxTitleLength    = 50
	MaxDetailsLength  = 1000
	MinDifficulty     = 1
	MaxDifficulty     = 5
	DefaultDifficulty = 1
)

var taskKeys = []string{"title", "details", "deadline", "parent", "difficulty", "lat", "lng", "list", "favourite", "done"}

// TaskInput is a complete task payload, used for create and full update.
type TaskInput struct {
	Title      string
	Details    *string
	Deadline   *time.Time
	Parent     *uint
	Difficulty int
	Lat        *float64
	Lng        *float64
	List       *uint
	Favourite  bool
	Done       bool
}

// TaskPatch holds the task fields present in a partial update.
type TaskPatch struct {
	Title      *string
	Details    Nullable[string]
	Deadline   Nullable[time.Time]
	Parent     Nullable[uint]
	Difficulty *int
	Lat        Nullable[float64]
	Lng        Nullable[float64]
	List       Nullable[uint]
	Favourite  *bool
	Done       *bool
}

type taskFields struct {
	title      *string
	details    Nullable[string]
	deadline   Nullable[time.Time]
	parent     Nullable[uint]
	difficulty *int
	lat        Nullable[float64]
	lng        Nullable[float64]
	list       Nullable[uint]
	favourite  *bool
	done       *bool
}

func (b Bag) taskFields(requireTitle bool) (taskFields, error) {
	var f taskFields

	raw, present, err := b.stringField("title", requireTitle)
	if err != nil {
		return f, err
	}
	if present {
		title := strings.TrimSpace(raw)
		if err := checkText("title", title, 1, MaxTitleLength); err != nil {
			return f, err
		}
		f.title = &title
	}

	if f.details, err = b.nullableString("details"); err != nil {
		return f, err
	}
	if f.details.Value != nil {
		if err := checkText("details", *f.details.Value, 0, MaxDetailsLength); err != nil {
			return f, err
		}
	}

	if f.deadline, err = b.nullableDate("deadline"); err != nil {
		return f, err
	}
	if f.parent, err = b.nullableID("parent"); err != nil {
		return f, err
	}

	if raw, ok := b["difficulty"]; ok {
		n, err := integer("difficulty", raw)
		if err != nil {
			return f, err
		}
		if n < MinDifficulty {
			return f, fail("difficulty", "must be greater than or equal to %d", MinDifficulty)
		}
		if n > MaxDifficulty {
			return f, fail("difficulty", "must be less than or equal to %d", MaxDifficulty)
		}
		d := int(n)
		f.difficulty = &d
	}

	if f.lat, err = b.nullableFloat("lat", -90, 90); err != nil {
		return f, err
	}
	if f.lng, err = b.nullableFloat("lng", -180, 180); err != nil {
		return f, err
	}
	if (f.lat.Value == nil) != (f.lng.Value == nil) || f.lat.Set != f.lng.Set {
		return f, &Error{Field: "lat", Message: `"lat" and "lng" must be provided together`}
	}

	if f.list, err = b.nullableID("list"); err != nil {
		return f, err
	}
	if f.favourite, err = b.boolField("favourite"); err != nil {
		return f, err
	}
	if f.done, err = b.boolField("done"); err != nil {
		return f, err
	}

	if err := b.allowOnly(taskKeys...); err != nil {
		return f, err
	}
	return f, nil
}

// TaskCreate validates a task for creation or full replacement. Absent optional fields
// take their defaults.
func TaskCreate(b Bag) (TaskInput, error) {
	f, err := b.taskFields(true)
	if err != nil {
		return TaskInput{}, err
	}
	in := TaskInput{
		Title:      *f.title,
		Details:    f.details.Value,
		Deadline:   f.deadline.Value,
		Parent:     f.parent.Value,
		Difficulty: DefaultDifficulty,
		Lat:        f.lat.Value,
		Lng:        f.lng.Value,
		List:       f.list.Value,
	}
	if f.difficulty != nil {
		in.Difficulty = *f.difficulty
	}
	if f.favourite != nil {
		in.Favourite = *f.favourite
	}
	if f.done != nil {
		in.Done = *f.done
	}
	return in, nil
}

// TaskPatchInput validates a partial task update. lat and lng must be patched together.
func TaskPatchInput(b Bag) (TaskPatch, error) {
	if err := b.atLeastOne(taskKeys...); err != nil {
		return TaskPatch{}, err
	}
	f, err := b.taskFields(false)
	if err != nil {
		return TaskPatch{}, err
	}
	return TaskPatch{
		Title:      f.title,
		Details:    f.details,
		Deadline:   f.deadline,
		Parent:     f.parent,
		Difficulty: f.difficulty,
		Lat:        f.lat,
		Lng:        f.lng,
		List:       f.list,
		Favourite:  f.favourite,
		Done:       f.done,
	}, nil
}
