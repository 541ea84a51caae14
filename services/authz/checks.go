// Package authz evaluates composable predicates against a resolved identity.
package authz

import (
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/credential"
)

// Check passes by returning nil or fails with a forbidden domain error
type Check func(identity *models.Identity) error

// RequireActive passes iff the identity is active
func RequireActive() Check {
	return func(identity *models.Identity) error {
		if identity == nil || !identity.Active {
			return services.Forbidden(services.CodeInactiveUser, "inactive user")
		}
		return nil
	}
}

// RequireSuperuser passes iff the identity is privileged
func RequireSuperuser() Check {
	return func(identity *models.Identity) error {
		if identity == nil || !identity.Privileged {
			return services.Forbidden(services.CodeInsufficientPermission, "the user doesn't have enough privileges")
		}
		return nil
	}
}

// RequirePermission passes when the identity is privileged or holds
// exactly the named permission. No wildcard or prefix matching is applied.
func RequirePermission(permission string) Check {
	return func(identity *models.Identity) error {
		if identity != nil && (identity.Privileged || identity.HasPermission(permission)) {
			return nil
		}
		return services.Forbidden(services.CodePermissionDenied, "permission denied").
			WithDetail("permission", permission)
	}
}

// Evaluate runs checks left to right and returns the first failure
func Evaluate(identity *models.Identity, checks ...Check) error {
	for _, check := range checks {
		if err := check(identity); err != nil {
			return err
		}
	}
	return nil
}

// VerifyCurrentCredential must pass before a stored credential is replaced.
// An empty or non-matching current secret is forbidden.
func VerifyCurrentCredential(verifier credential.Verifier, currentSecret, storedDigest string) error {
	if currentSecret == "" || !verifier.Verify(currentSecret, storedDigest) {
		return services.Forbidden(services.CodeInvalidCurrentPassword, "current password is incorrect")
	}
	return nil
}
