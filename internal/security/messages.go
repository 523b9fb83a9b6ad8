package security

import (
	"github.com/redharvest/redharvest-go/internal/errors"
)

// The interface speaks Arabic, so auth failures are translated to the
// messages the login and registration forms show. Anything unrecognized
// gets the generic message rather than leaking internals.
const (
	msgEmailInUse     = "البريد الإلكتروني مستخدم بالفعل"
	msgInvalidEmail   = "البريد الإلكتروني غير صالح"
	msgWeakPassword   = "كلمة المرور ضعيفة جداً"
	msgBadCredentials = "البريد الإلكتروني أو كلمة المرور غير صحيحة"
	msgLoginRequired  = "يجب تسجيل الدخول أولاً"
	msgNotAllowed     = "غير مصرح لك بهذا الإجراء"
	msgGeneric        = "حدث خطأ، حاول مرة أخرى"
)

var reasonMessages = map[string]string{
	"email_in_use":    msgEmailInUse,
	"invalid_email":   msgInvalidEmail,
	"weak_password":   msgWeakPassword,
	"bad_credentials": msgBadCredentials,
}

// MessageFor maps an auth or validation error to its user-facing Arabic
// message.
func MessageFor(err error) string {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		if reason, ok := enhanced.GetContext()["reason"].(string); ok {
			if msg, found := reasonMessages[reason]; found {
				return msg
			}
		}
		if errors.IsAuthRequired(err) {
			return msgLoginRequired
		}
	}
	return msgGeneric
}
