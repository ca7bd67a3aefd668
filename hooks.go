package register

import "context"

// HookPhase identifies which registrar operation is running the chain
type HookPhase string

const (
	// HookPhaseCreate runs before a new user record is persisted
	HookPhaseCreate HookPhase = "before_create"
	// HookPhaseUpdate runs before an existing record is updated
	HookPhaseUpdate HookPhase = "before_update"
)

// HookContext is passed to every hook in the chain
type HookContext struct {
	Phase HookPhase
	User  *User
	// Existing is the persisted record during updates, nil on create
	Existing *User
}

// HookResult reports a hook decision. A disapproval short-circuits the chain
// and aborts the operation with the carried reason.
type HookResult struct {
	Approved bool
	Reason   string
}

// Approve is the result for hooks with nothing to object to
func Approve() HookResult {
	return HookResult{Approved: true}
}

// Disapprove aborts the chain with a reason
func Disapprove(reason string) HookResult {
	return HookResult{Approved: false, Reason: reason}
}

// RegistrationHook is a named predicate consulted before create/update
type RegistrationHook struct {
	Name  string
	Check func(ctx context.Context, hc HookContext) HookResult
}

// HookRegistry holds hooks in registration order
type HookRegistry struct {
	hooks []RegistrationHook
}

// NewHookRegistry creates an empty registry
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register appends a hook. Hooks without a Check func are ignored.
func (r *HookRegistry) Register(hook RegistrationHook) *HookRegistry {
	if hook.Check != nil {
		r.hooks = append(r.hooks, hook)
	}
	return r
}

// Run invokes every hook in registration order, aborting on the first
// disapproval. The returned error carries the hook name and reason.
func (r *HookRegistry) Run(ctx context.Context, hc HookContext) error {
	if r == nil {
		return nil
	}
	for _, hook := range r.hooks {
		if result := hook.Check(ctx, hc); !result.Approved {
			return newHookRejectedError(hook.Name, result.Reason)
		}
	}
	return nil
}
