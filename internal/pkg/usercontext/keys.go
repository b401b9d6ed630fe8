package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyAdmin = "ADMIN_CONTEXT"
)
