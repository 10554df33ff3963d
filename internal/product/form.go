package product

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// productForm keeps the raw submitted values so an invalid form can be redisplayed
// exactly as typed.
type productForm struct {
	Name        string
	Quantity    string
	Price       string
	Description string
}

func formOf(p Product) productForm {
	return productForm{
		Name:        p.Name,
		Quantity:    strconv.Itoa(p.Quantity),
		Price:       strconv.FormatFloat(p.Price, 'f', 2, 64),
		Description: p.Description,
	}
}

// parseDraft reads the product fields of a submitted form. Blank numeric fields
// count as zero. Field errors are keyed by form field name.
func parseDraft(r *http.Request) (productForm, Draft, map[string]string) {
	form := productForm{
		Name:        r.PostFormValue("name"),
		Quantity:    strings.TrimSpace(r.PostFormValue("quantity")),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
		Description: r.PostFormValue("description"),
	}
	errs := make(map[string]string)
	draft := Draft{Name: form.Name, Description: form.Description}

	if form.Quantity != "" {
		n, err := strconv.Atoi(form.Quantity)
		if err != nil {
			errs["quantity"] = "La cantidad debe ser un número entero."
		}
		draft.Quantity = n
	}
	if form.Price != "" {
		f, err := strconv.ParseFloat(strings.Replace(form.Price, ",", ".", 1), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			errs["price"] = "El precio debe ser un número."
		}
		draft.Price = f
	}

	draft = draft.Normalize()
	if err := validate.Struct(draft); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				field := strings.ToLower(fe.Field())
				if _, taken := errs[field]; !taken {
					errs[field] = fieldMessage(fe)
				}
			}
		}
	}
	return form, draft, errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio."
	case "gte":
		return "El valor no puede ser negativo."
	case "max":
		return "El texto es demasiado largo."
	default:
		return "Valor inválido."
	}
}
