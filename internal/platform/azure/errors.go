package azure

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/imamik/azhpc/internal/resource"
)

// errorCodes maps Azure error codes onto structured codes.
var errorCodes = map[string]resource.ErrorCode{
	"PrincipalNotFound":                  resource.CodePrincipalNotFound,
	"AuthorizationFailed":                resource.CodeAuthorizationPending,
	"ForbiddenByRbac":                    resource.CodeAuthorizationPending,
	"AuthorizationPermissionMismatch":    resource.CodeAuthorizationPending,
	"ResourceGroupBeingDeleted":          resource.CodeResourceDeleting,
	"ResourceBeingDeleted":               resource.CodeResourceDeleting,
	"ParentResourceIsBeingDeleted":       resource.CodeResourceDeleting,
	"TooManyRequests":                    resource.CodeThrottled,
	"RetryableError":                     resource.CodeTransient,
	"AnotherOperationInProgress":         resource.CodeTransient,
	"InternalServerError":                resource.CodeTransient,
	"ServiceUnavailable":                 resource.CodeTransient,
	"Conflict":                           resource.CodeConflict,
	"RoleAssignmentExists":               resource.CodeAlreadyExists,
	"ResourceAlreadyExists":              resource.CodeAlreadyExists,
	"KeyBasedAuthenticationNotPermitted": resource.CodePolicyDeniedSharedKey,
	"RequestDisallowedByPolicy":          resource.CodePolicyDenied,
	"ForbiddenByPolicy":                  resource.CodePolicyDenied,
	"QuotaExceeded":                      resource.CodeQuotaExceeded,
	"OperationNotAllowed":                resource.CodeQuotaExceeded,
	"SkuNotAvailable":                    resource.CodeQuotaExceeded,
	"ResourceNotFound":                   resource.CodeNotFound,
	"ResourceGroupNotFound":              resource.CodeNotFound,
	"NotFound":                           resource.CodeNotFound,
	"CertificateNotFound":                resource.CodeNotFound,
	"DeploymentNotFound":                 resource.CodeNotFound,
}

// messagePatterns classify errors that only carry text, such as the output
// of a failed deployment script. Order matters: the first match wins.
var messagePatterns = []struct {
	re   *regexp.Regexp
	code resource.ErrorCode
}{
	{regexp.MustCompile(`(?i)key based authentication is not permitted|shared ?key access is (not permitted|disabled)|allowSharedKeyAccess`), resource.CodePolicyDeniedSharedKey},
	{regexp.MustCompile(`(?i)disallowed by policy|policy assignment`), resource.CodePolicyDenied},
	{regexp.MustCompile(`(?i)principal .* does not exist|PrincipalNotFound`), resource.CodePrincipalNotFound},
	{regexp.MustCompile(`(?i)does not have authorization|AuthorizationFailed|not authorized to perform`), resource.CodeAuthorizationPending},
	{regexp.MustCompile(`(?i)quota|exceeding approved .* limit`), resource.CodeQuotaExceeded},
	{regexp.MustCompile(`(?i)being deleted|deprovisioning`), resource.CodeResourceDeleting},
	{regexp.MustCompile(`(?i)too many requests|throttl`), resource.CodeThrottled},
	{regexp.MustCompile(`(?i)already exists`), resource.CodeAlreadyExists},
	{regexp.MustCompile(`(?i)timed? ?out|temporarily unavailable|try again later`), resource.CodeTransient},
}

// Classify converts a raw Azure SDK error into a *resource.Error.
// Context errors and already classified errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var classified *resource.Error
	if errors.As(err, &classified) {
		return err
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return resource.Wrap(classifyResponse(respErr), op, err)
	}
	return resource.Wrap(ClassifyMessage(err.Error()), op, err)
}

func classifyResponse(respErr *azcore.ResponseError) resource.ErrorCode {
	code, ok := errorCodes[respErr.ErrorCode]
	if ok {
		// policy denials that mention shared key access are the narrow case
		if code == resource.CodePolicyDenied && ClassifyMessage(respErr.Error()) == resource.CodePolicyDeniedSharedKey {
			return resource.CodePolicyDeniedSharedKey
		}
		if code == resource.CodeQuotaExceeded && respErr.ErrorCode == "OperationNotAllowed" &&
			!strings.Contains(strings.ToLower(respErr.Error()), "quota") {
			return resource.CodeUnclassified
		}
		return code
	}

	switch {
	case respErr.StatusCode == http.StatusNotFound:
		return resource.CodeNotFound
	case respErr.StatusCode == http.StatusTooManyRequests:
		return resource.CodeThrottled
	case respErr.StatusCode == http.StatusConflict:
		return resource.CodeConflict
	case respErr.StatusCode >= http.StatusInternalServerError:
		return resource.CodeTransient
	}
	return ClassifyMessage(respErr.Error())
}

// ClassifyMessage classifies free-form error text.
func ClassifyMessage(msg string) resource.ErrorCode {
	for _, p := range messagePatterns {
		if p.re.MatchString(msg) {
			return p.code
		}
	}
	return resource.CodeUnclassified
}

// IsNotFound reports whether an Azure SDK error means the resource does not exist.
func IsNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return resource.IsNotFound(err)
}
