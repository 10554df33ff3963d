package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrConfig marks a fatal startup configuration problem.
	ErrConfig = errors.New("invalid configuration")
	// ErrDuplicateSubmit is returned when a form nonce or in-flight key was already claimed.
	ErrDuplicateSubmit = errors.New("duplicate submission")

	// ErrFetch wraps failures loading a product collection.
	ErrFetch = errors.New("fetch products")
	// ErrCreate wraps failures inserting a product.
	ErrCreate = errors.New("create product")
	// ErrUpdate wraps failures updating a product.
	ErrUpdate = errors.New("update product")
	// ErrDelete wraps failures deleting a product.
	ErrDelete = errors.New("delete product")
	// ErrValidation wraps form validation failures.
	ErrValidation = errors.New("validation failed")
)

// UserSafeMessage maps an error to a message suitable for a notification. Remote
// error details never reach the user.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "Revisa los datos del formulario."
	case errors.Is(err, ErrDuplicateSubmit):
		return "La solicitud ya está en proceso."
	case errors.Is(err, ErrInvalidCredentials):
		return "Error al iniciar sesión. Verifica tus credenciales."
	case errors.Is(err, ErrFetch):
		return "Error al cargar los productos."
	case errors.Is(err, ErrCreate):
		return "Error al agregar el producto."
	case errors.Is(err, ErrUpdate):
		return "Error al editar el producto."
	case errors.Is(err, ErrDelete):
		return "Error al eliminar el producto."
	case errors.Is(err, ErrNotFound):
		return "El producto no existe."
	default:
		return "Ocurrió un error inesperado. Intenta de nuevo."
	}
}
