package server

import (
	"taskdeck/internal/domain"
)

// Request payloads

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Stage       *string  `json:"stage,omitempty" enum:"todo,in progress,completed"`
	Priority    *string  `json:"priority,omitempty" enum:"low,normal,high,urgent"`
	Assignees   []string `json:"assignees,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *string   `json:"priority,omitempty" enum:"low,normal,high,urgent"`
	Assignees   *[]string `json:"assignees,omitempty"`
}

type ChangeStageRequest struct {
	Stage string `json:"stage" enum:"todo,in progress,completed"`
}

type CreateSubTaskRequest struct {
	Title string `json:"title"`
	Tag   string `json:"tag"`
	Date  string `json:"date" format:"date-time"`
}

type PostActivityRequest struct {
	Type string `json:"type" enum:"assigned,started,in progress,bug,completed,commented,stage-change"`
	Text string `json:"text"`
}

type TrashActionRequest struct {
	Action string  `json:"action" enum:"delete,deleteAll,restore,restoreAll"`
	ID     *string `json:"id,omitempty"`
}

type CreateUserRequest struct {
	Name    string  `json:"name"`
	Title   *string `json:"title,omitempty"`
	Role    *string `json:"role,omitempty"`
	Email   *string `json:"email,omitempty" format:"email"`
	IsAdmin bool    `json:"is_admin,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name *string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

// Response payloads

type SubTaskResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Tag       string `json:"tag"`
	Date      string `json:"date" format:"date-time"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ActivityResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type" enum:"assigned,started,in progress,bug,completed,commented,stage-change"`
	Text    string `json:"text"`
	ActorID string `json:"actor_id,omitempty"`
	TS      string `json:"ts" format:"date-time"`
}

type TaskResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Stage       string             `json:"stage" enum:"todo,in progress,completed"`
	Priority    string             `json:"priority" enum:"low,normal,high,urgent"`
	Assignees   []string           `json:"assignees"`
	SubTasks    []SubTaskResponse  `json:"sub_tasks"`
	Activities  []ActivityResponse `json:"activities"`
	IsTrashed   bool               `json:"is_trashed"`
	CreatedAt   string             `json:"created_at" format:"date-time"`
	UpdatedAt   string             `json:"updated_at" format:"date-time"`
}

type TaskListResponse struct {
	Items      []TaskResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type StatsResponse struct {
	Total      int            `json:"total"`
	ByStage    map[string]int `json:"by_stage"`
	ByPriority map[string]int `json:"by_priority"`
	Recent     []TaskResponse `json:"recent"`
	LastWeek   int            `json:"last_week"`
}

type WhoAmIResponse struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	Source  string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Converters

func subTaskResponse(st domain.SubTask) SubTaskResponse {
	return SubTaskResponse{
		ID:        st.ID,
		Title:     st.Title,
		Tag:       st.Tag,
		Date:      st.Date,
		Completed: st.Completed,
		CreatedAt: st.CreatedAt,
	}
}

func activityResponse(a domain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:      a.ID,
		Type:    a.Type,
		Text:    a.Text,
		ActorID: a.ActorID,
		TS:      a.TS,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	subs := make([]SubTaskResponse, 0, len(t.SubTasks))
	for _, st := range t.SubTasks {
		subs = append(subs, subTaskResponse(st))
	}
	acts := make([]ActivityResponse, 0, len(t.Activities))
	for _, a := range t.Activities {
		acts = append(acts, activityResponse(a))
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Stage:       t.Stage,
		Priority:    t.Priority,
		Assignees:   nonNilSlice(t.Assignees),
		SubTasks:    subs,
		Activities:  acts,
		IsTrashed:   t.IsTrashed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Title:     u.Title,
		Role:      u.Role,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	res := make([]UserResponse, 0, len(items))
	for _, u := range items {
		res = append(res, userResponse(u))
	}
	return res
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		UserID:    k.UserID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func statsResponse(s domain.Stats) StatsResponse {
	return StatsResponse{
		Total:      s.Total,
		ByStage:    s.ByStage,
		ByPriority: s.ByPriority,
		Recent:     mapTasks(s.Recent),
		LastWeek:   s.LastWeek,
	}
}

func nonNilSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
