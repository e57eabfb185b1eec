package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	notBlankTag   = "notblank"
	permissionTag = "permission"
	roleTag       = "role"
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON field names rather than Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(permissionTag, validPermission)
	_ = validate.RegisterValidation(roleTag, knownRole)

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, permissionTag, roleTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case permissionTag:
		return fe.Field() + " must be resource:action:scope"
	case roleTag:
		return fe.Field() + " is not a known role"
	default:
		return fe.Error()
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

func validPermission(fl validator.FieldLevel) bool {
	_, err := authz.ParsePermission(fl.Field().String())
	return err == nil
}

func knownRole(fl validator.FieldLevel) bool {
	_, err := authz.LookupRole(fl.Field().String())
	return err == nil
}

// bind parses the JSON body into dst and validates it. When it returns
// false the error response has already been written and the handler must
// return the accompanying error.
func bind(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, middleware.BadRequest(c, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe)] = fe.Translate(translator)
			}
			return false, middleware.ValidationFailed(c, fields)
		}
		return false, middleware.BadRequest(c, err.Error())
	}
	return true, nil
}

// fieldPath drops the top-level struct name from the namespace, so
// "CreateUserRequest.roles[0]" becomes "roles[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// storeError renders errors from the document store.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case store.IsNotFound(err):
		return middleware.NotFound(c, err.Error())
	case store.IsDuplicate(err):
		return middleware.Conflict(c, err.Error())
	case store.IsVersionConflict(err):
		return middleware.PreconditionFailed(c, err.Error())
	default:
		middleware.GetLogger(c).Error("Store operation failed", logger.Error(err))
		return middleware.InternalServerError(c, "storage error")
	}
}

// expectedVersion reads the If-Match header. Absent means no check.
// Accepts 3, "3" and W/"3".
func expectedVersion(c *fiber.Ctx) (uint64, error) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "If-Match must be a positive version number")
	}
	return v, nil
}

// setETag publishes the document version for conditional updates.
func setETag(c *fiber.Ctx, version uint64) {
	c.Set(fiber.HeaderETag, `"`+strconv.FormatUint(version, 10)+`"`)
}
