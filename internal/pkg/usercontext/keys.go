package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
	KeyServiceCall   = "service_call"
)

// SystemActor is recorded as the actor for calls without a user.
const SystemActor = "system"
