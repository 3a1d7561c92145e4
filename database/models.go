package database

import "time"

// DefaultListName is the task list created alongside every new user.
const DefaultListName = "prioritease-favourite-tasks"

// NotificationStatus tracks delivery of a notification.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// NotificationType classifies a notification.
type NotificationType string

const (
	TypeReminder  NotificationType = "reminder"
	TypeDeadline  NotificationType = "deadline"
	TypeRecurring NotificationType = "recurring"
	TypeUrgent    NotificationType = "urgent"
	TypeCustom    NotificationType = "custom"
)

// User is an account. Secrets never leave the server.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Username        string     `gorm:"size:30;not null" json:"username"`
	Email           string     `gorm:"size:255;not null;index" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	ProfilePicture  *string    `json:"profilePicture"`
	DeviceToken     *string    `gorm:"size:255" json:"-"`
	Enabled         bool       `gorm:"not null;default:true" json:"enabled"`
	Admin           bool       `gorm:"not null;default:false" json:"admin"`
	ResetCode       *int64     `json:"-"`
	ResetCodeExpiry *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TaskList is a named grouping of tasks.
type TaskList struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user"`
	User      *User     `json:"-"`
	Name      string    `gorm:"size:30;not null" json:"name"`
	Enabled   bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is a unit of work, optionally nested under a parent and filed in a list.
type Task struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user"`
	User       *User      `json:"-"`
	Title      string     `gorm:"size:50;not null" json:"title"`
	Details    *string    `gorm:"type:text" json:"details"`
	Deadline   *time.Time `json:"deadline"`
	ParentID   *uint      `gorm:"index" json:"parent"`
	Parent     *Task      `gorm:"foreignKey:ParentID" json:"-"`
	Difficulty int        `gorm:"not null;default:1" json:"difficulty"`
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	ListID     *uint      `gorm:"index" json:"list"`
	List       *TaskList  `gorm:"foreignKey:ListID" json:"-"`
	Favourite  bool       `gorm:"not null;default:false" json:"favourite"`
	Done       bool       `gorm:"not null;default:false" json:"done"`
	Enabled    bool       `gorm:"not null;default:true" json:"enabled"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Notification is a scheduled reminder for a task. UserID copies the task's owner.
type Notification struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	ScheduledTime time.Time          `gorm:"not null;uniqueIndex:idx_notifications_time_task,priority:1" json:"scheduledTime"`
	TaskID        uint               `gorm:"not null;uniqueIndex:idx_notifications_time_task,priority:2" json:"task"`
	Task          *Task              `json:"-"`
	UserID        uint               `gorm:"not null;index" json:"user"`
	User          *User              `json:"-"`
	Status        NotificationStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	Message       *string            `gorm:"size:255" json:"message"`
	Type          NotificationType   `gorm:"size:16;not null;default:reminder" json:"type"`
	Enabled       bool               `gorm:"not null;default:true" json:"enabled"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NormalizeScheduledTime puts a scheduled time in the form used by the natural key.
func NormalizeScheduledTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
