package toolsets

import "fmt"

// Code classifies activation failures so callers can distinguish them
// programmatically. Activation operations return codes as data instead of
// raising errors across the component boundary.
type Code string

const (
	// CodeValidation marks unknown or malformed toolset names, and enable
	// attempts on an already active toolset.
	CodeValidation Code = "validation"

	// CodePolicyDenied marks rejections by the exposure policy
	// (allowlist, denylist, or max-active limit).
	CodePolicyDenied Code = "policy_denied"

	// CodeCollision marks capability name conflicts in the registry.
	CodeCollision Code = "collision"

	// CodeLoaderError marks lazy module loader failures.
	CodeLoaderError Code = "loader_error"

	// CodeInternal marks unexpected failures.
	CodeInternal Code = "internal"
)

// CollisionError is returned by Registry.ValidateNames when a capability's
// qualified name conflicts with the current namespace. It is the one error
// that crosses the registry boundary by contract; the activation manager
// catches it immediately and converts it to a structured result.
type CollisionError struct {
	// Name is the qualified capability name that collided.
	Name string

	// Owner is the toolset that already owns the name. Empty when the name
	// was registered bare via Add.
	Owner string
}

func (e *CollisionError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("capability name %q already registered by toolset %q", e.Name, e.Owner)
	}
	return fmt.Sprintf("capability name %q already registered", e.Name)
}

// LoaderError wraps a lazy module loader failure with the toolset and module
// reference that produced it.
type LoaderError struct {
	Toolset string
	Ref     string
	Err     error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("module loader %q for toolset %q failed: %v", e.Ref, e.Toolset, e.Err)
}

func (e *LoaderError) Unwrap() error {
	return e.Err
}
