package products

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
)

// Form field names shared with the admin UI.
const (
	fieldMedia    = "media[]"
	fieldRemoveID = "removeMediaIds[]"
)

// Handler handles HTTP requests for product operations. Handlers are thin:
// bind request, call service, render response.
type Handler struct {
	service ProductService
}

// NewHandler creates a new product handler.
func NewHandler(service ProductService) *Handler {
	return &Handler{service: service}
}

// List returns a page of products (GET /api/products?page=&perPage=).
func (h *Handler) List(c echo.Context) error {
	opts := DefaultListOptions()
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if perPage, err := strconv.Atoi(c.QueryParam("perPage")); err == nil {
		opts.PerPage = perPage
	}

	result, err := h.service.List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Create creates a product from a multipart form (POST /api/products).
func (h *Handler) Create(c echo.Context) error {
	input, err := bindInput(c)
	if err != nil {
		return err
	}
	p, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Show returns one product with its media (GET /api/products/:id).
func (h *Handler) Show(c echo.Context) error {
	p, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update applies an edit from a multipart form (PUT /api/products/:id).
func (h *Handler) Update(c echo.Context) error {
	input, err := bindInput(c)
	if err != nil {
		return err
	}
	p, err := h.service.Update(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes a product, its files and its media (DELETE /api/products/:id).
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// bindInput reads the product form. Multipart bodies may carry files under
// media[] and removals under removeMediaIds[]; URL-encoded bodies carry
// fields only.
func bindInput(c echo.Context) (ProductInput, error) {
	input := ProductInput{}

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				return input, apperror.NewTooLarge("request body too large")
			}
			return input, apperror.NewBadRequest("invalid multipart form")
		}
		for _, name := range []string{fieldMedia, "media"} {
			for _, fh := range form.File[name] {
				input.Files = append(input.Files, media.FromFileHeader(fh))
			}
		}
		input.RemoveMediaIDs = append(form.Value[fieldRemoveID], form.Value["removeMediaIds"]...)
	} else {
		params, err := c.FormParams()
		if err != nil {
			return input, apperror.NewBadRequest("invalid form")
		}
		input.RemoveMediaIDs = append(params[fieldRemoveID], params["removeMediaIds"]...)
	}

	input.Title = c.FormValue("title")
	input.ShortDescription = c.FormValue("shortDescription")
	input.Description = c.FormValue("description")
	input.Price = c.FormValue("price")
	input.CostPrice = c.FormValue("costPrice")
	input.DiscountPrice = c.FormValue("discountPrice")
	return input, nil
}
