package domain

// Stage is the workflow position of a task.
const (
	StageTodo       = "todo"
	StageInProgress = "in progress"
	StageCompleted  = "completed"
)

// Priority levels, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Activity types recognised by the log.
const (
	ActivityAssigned    = "assigned"
	ActivityStarted     = "started"
	ActivityInProgress  = "in progress"
	ActivityBug         = "bug"
	ActivityCompleted   = "completed"
	ActivityCommented   = "commented"
	ActivityStageChange = "stage-change"
)

// Stages lists the valid workflow stages in board order.
var Stages = []string{StageTodo, StageInProgress, StageCompleted}

// Priorities lists the valid priority values, lowest first.
var Priorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// ActivityTypes lists the valid activity log entry types.
var ActivityTypes = []string{
	ActivityAssigned, ActivityStarted, ActivityInProgress,
	ActivityBug, ActivityCompleted, ActivityCommented, ActivityStageChange,
}

func ValidStage(s string) bool {
	for _, v := range Stages {
		if v == s {
			return true
		}
	}
	return false
}

func ValidPriority(p string) bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

func ValidActivityType(t string) bool {
	for _, v := range ActivityTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Stage       string     `json:"stage" enum:"todo,in progress,completed"`
	Priority    string     `json:"priority" enum:"low,normal,high,urgent"`
	Assignees   []string   `json:"assignees"`
	SubTasks    []SubTask  `json:"sub_tasks"`
	Activities  []Activity `json:"activities"`
	IsTrashed   bool       `json:"is_trashed"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

// SubTask is a child work item owned exclusively by its parent task.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Tag       string `json:"tag"`
	Date      string `json:"date" format:"date-time"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Activity is an immutable audit-log entry on a task.
type Activity struct {
	ID      string `json:"id"`
	Type    string `json:"type" enum:"assigned,started,in progress,bug,completed,commented,stage-change"`
	Text    string `json:"text"`
	ActorID string `json:"actor_id"`
	TS      string `json:"ts" format:"date-time"`
}

// User is referenced by tasks and by access control; taskdeck does not
// own credential issuance for it.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Stats is the dashboard aggregate, always recomputed from the live
// non-trashed task set.
type Stats struct {
	Total      int            `json:"total"`
	ByStage    map[string]int `json:"by_stage"`
	ByPriority map[string]int `json:"by_priority"`
	Recent     []Task         `json:"recent"`
	LastWeek   int            `json:"last_week"`
}
