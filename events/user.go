package events

// Type tags for the user domain. All of them route to the "user" topic.
const (
	TypeUserCreated         = "user.created"
	TypeUserUpdated         = "user.updated"
	TypeUserDeleted         = "user.deleted"
	TypeUserPasswordChanged = "user.password_changed"
	TypeUserLogin           = "user.login"
	TypeUserLogout          = "user.logout"
	TypeUserRoleChanged     = "user.role_changed"
)

type UserCreated struct {
	Base

	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	IsActive bool     `json:"is_active"`
}

func (UserCreated) EventType() string { return TypeUserCreated }

type UserUpdated struct {
	Base

	UserID string `json:"user_id"`
	// Changes maps a field name to its {old, new} values.
	Changes map[string][]string `json:"changes,omitempty"`
}

func (UserUpdated) EventType() string { return TypeUserUpdated }

type UserDeleted struct {
	Base

	UserID     string `json:"user_id"`
	Reason     string `json:"reason,omitempty"`
	SoftDelete bool   `json:"soft_delete"`
}

func (UserDeleted) EventType() string { return TypeUserDeleted }

type PasswordChanged struct {
	Base

	UserID    string `json:"user_id"`
	ChangedBy string `json:"changed_by"` // self / admin
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (PasswordChanged) EventType() string { return TypeUserPasswordChanged }

type UserLogin struct {
	Base

	UserID        string `json:"user_id"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (UserLogin) EventType() string { return TypeUserLogin }

type UserLogout struct {
	Base

	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

func (UserLogout) EventType() string { return TypeUserLogout }

type UserRoleChanged struct {
	Base

	UserID       string   `json:"user_id"`
	AddedRoles   []string `json:"added_roles,omitempty"`
	RemovedRoles []string `json:"removed_roles,omitempty"`
	ChangedBy    string   `json:"changed_by"`
}

func (UserRoleChanged) EventType() string { return TypeUserRoleChanged }

// UserEvents returns one instance of every user-domain event, ready to hand
// to Registry.Register.
func UserEvents() []Event {
	return []Event{
		&UserCreated{},
		&UserUpdated{},
		&UserDeleted{},
		&PasswordChanged{},
		&UserLogin{},
		&UserLogout{},
		&UserRoleChanged{},
	}
}
