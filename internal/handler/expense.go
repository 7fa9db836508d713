package handler

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-planner/internal/metrics"
	"github.com/iliyamo/wedding-planner/internal/model"
	"github.com/iliyamo/wedding-planner/internal/queue"
	"github.com/iliyamo/wedding-planner/internal/repository"
	"github.com/iliyamo/wedding-planner/internal/upload"
)

// documentsField is the multipart field carrying expense documents.
const documentsField = "documents"

// ExpenseHandler serves /api/expenses, including item and document
// sub-resources.
type ExpenseHandler struct {
	Expenses *repository.ExpenseRepo
	Store    *upload.Store
	Policy   upload.Policy
	Metrics  *metrics.Metrics
	Events   EventPublisher
}

// readInput parses a JSON or multipart body.  For multipart requests the
// file set is checked against the upload policy before anything else.
func (h *ExpenseHandler) readInput(c echo.Context) (repository.ExpenseInput, []*multipart.FileHeader, error) {
	var in repository.ExpenseInput
	if !isMultipart(c) {
		return in, nil, bindStrict(c, &in)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return in, nil, &repository.ValidationError{Field: "body", Message: "invalid multipart form"}
	}
	files := form.File[documentsField]
	if err := h.Policy.Check(files); err != nil {
		h.Metrics.ObserveUpload(metrics.UploadRejected, len(files))
		return in, nil, err
	}
	in, err = formInput(form.Value)
	return in, files, err
}

func isMultipart(c echo.Context) bool {
	ct := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	return strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

// expenseFormFields are the multipart text fields an expense accepts.  As
// with the JSON body, total is accepted and then ignored because it is
// always derived from the items.
var expenseFormFields = map[string]bool{
	"category": true, "status": true, "notes": true, "budget": true, "total": true,
}

// formInput maps multipart text fields onto an ExpenseInput.  Only fields
// present in the form are set; unknown fields are rejected.
func formInput(v map[string][]string) (repository.ExpenseInput, error) {
	var in repository.ExpenseInput
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !expenseFormFields[k] {
			return in, &repository.ValidationError{Field: k, Message: "unknown field"}
		}
	}

	field := func(k string) *string {
		if vals, ok := v[k]; ok && len(vals) > 0 {
			s := vals[0]
			return &s
		}
		return nil
	}
	number := func(k string) (*float64, error) {
		raw := field(k)
		if raw == nil || strings.TrimSpace(*raw) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return nil, &repository.ValidationError{Field: k, Message: "must be a number"}
		}
		return &f, nil
	}

	in.Category = field("category")
	in.Status = field("status")
	in.Notes = field("notes")
	var err error
	if in.Budget, err = number("budget"); err != nil {
		return in, err
	}
	if in.Total, err = number("total"); err != nil {
		return in, err
	}
	return in, nil
}

// save writes files for an expense and counts them.
func (h *ExpenseHandler) save(uid, expenseID string, files []*multipart.FileHeader) ([]model.Document, error) {
	if len(files) == 0 {
		return nil, nil
	}
	docs, err := h.Store.Save(uid, expenseID, files)
	if err != nil {
		return nil, err
	}
	h.Metrics.ObserveUpload(metrics.UploadAccepted, len(docs))
	return docs, nil
}

func (h *ExpenseHandler) List(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		list, err := h.Expenses.List(ctx, uid)
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, list)
	})
}

func (h *ExpenseHandler) Get(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		e, err := h.Expenses.Get(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, e)
	})
}

// Create accepts JSON or multipart with optional documents.  Files are
// written before the row and removed again if the insert fails.
func (h *ExpenseHandler) Create(c echo.Context) error {
	in, files, err := h.readInput(c)
	if err != nil {
		return respondError(c, "expense", err)
	}
	if err := in.Check(true); err != nil {
		return respondError(c, "expense", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		id := repository.NewExpenseID()
		docs, err := h.save(uid, id, files)
		if err != nil {
			return respondError(c, "expense", err)
		}
		e, err := h.Expenses.Create(ctx, uid, id, in, docs)
		if err != nil {
			h.Store.RemoveDocuments(docs)
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusCreated, e)
	})
}

// Update merges the present fields and appends any uploaded documents.
func (h *ExpenseHandler) Update(c echo.Context) error {
	in, files, err := h.readInput(c)
	if err != nil {
		return respondError(c, "expense", err)
	}
	if err := in.Check(false); err != nil {
		return respondError(c, "expense", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		id := c.Param("id")
		if len(files) > 0 {
			// no files on disk for expenses the caller cannot see
			if _, err := h.Expenses.Get(ctx, uid, id); err != nil {
				return respondError(c, "expense", err)
			}
		}
		docs, err := h.save(uid, id, files)
		if err != nil {
			return respondError(c, "expense", err)
		}
		e, statusChanged, err := h.Expenses.Update(ctx, uid, id, in, docs)
		if err != nil {
			h.Store.RemoveDocuments(docs)
			return respondError(c, "expense", err)
		}
		if statusChanged {
			ev := queue.NewActivityEvent(queue.ExpenseStatusChanged, uid, e.ID)
			ev.Detail = "unset"
			if e.Status != nil {
				ev.Detail = string(*e.Status)
			}
			emit(c, h.Events, ev)
		}
		return c.JSON(http.StatusOK, e)
	})
}

// Delete removes the expense and the files of its documents.
func (h *ExpenseHandler) Delete(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		files, err := h.Expenses.Delete(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "expense", err)
		}
		h.Store.Remove(files...)
		return c.JSON(http.StatusOK, echo.Map{"message": "expense deleted"})
	})
}

func (h *ExpenseHandler) AddItem(c echo.Context) error {
	var in repository.ItemInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "expense", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		e, err := h.Expenses.AddItem(ctx, uid, c.Param("id"), in)
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusCreated, e)
	})
}

func (h *ExpenseHandler) UpdateItem(c echo.Context) error {
	var in repository.ItemInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "expense", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		e, err := h.Expenses.UpdateItem(ctx, uid, c.Param("id"), c.Param("itemId"), in)
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, e)
	})
}

// RemoveItem is a no-op for items that are already gone.
func (h *ExpenseHandler) RemoveItem(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		e, err := h.Expenses.RemoveItem(ctx, uid, c.Param("id"), c.Param("itemId"))
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, e)
	})
}

// AttachDocuments appends uploaded files to an expense.
func (h *ExpenseHandler) AttachDocuments(c echo.Context) error {
	if !isMultipart(c) {
		return respondError(c, "expense", &repository.ValidationError{Field: documentsField, Message: "multipart/form-data body required"})
	}
	form, err := c.MultipartForm()
	if err != nil {
		return respondError(c, "expense", &repository.ValidationError{Field: "body", Message: "invalid multipart form"})
	}
	files := form.File[documentsField]
	if err := h.Policy.Check(files); err != nil {
		h.Metrics.ObserveUpload(metrics.UploadRejected, len(files))
		return respondError(c, "expense", err)
	}
	if len(files) == 0 {
		return respondError(c, "expense", &repository.ValidationError{Field: documentsField, Message: "at least one file is required"})
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		id := c.Param("id")
		if _, err := h.Expenses.Get(ctx, uid, id); err != nil {
			return respondError(c, "expense", err)
		}
		docs, err := h.save(uid, id, files)
		if err != nil {
			return respondError(c, "expense", err)
		}
		e, err := h.Expenses.AttachDocuments(ctx, uid, id, docs)
		if err != nil {
			h.Store.RemoveDocuments(docs)
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusCreated, e)
	})
}

// DownloadDocument streams a stored document as an attachment with its
// recorded content type.
func (h *ExpenseHandler) DownloadDocument(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		doc, err := h.Expenses.GetDocument(ctx, uid, c.Param("id"), c.Param("docId"))
		if err != nil {
			return respondError(c, "expense", err)
		}
		f, err := h.Store.Open(doc.Filename)
		if errors.Is(err, fs.ErrNotExist) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document file is missing"})
		}
		if err != nil {
			return respondError(c, "expense", err)
		}
		defer f.Close()

		c.Response().Header().Set(echo.HeaderContentDisposition,
			mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalName}))
		if doc.Size > 0 {
			c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(doc.Size, 10))
		}
		return c.Stream(http.StatusOK, doc.MimeType, f)
	})
}

// RemoveDocument detaches a document and deletes its file.
func (h *ExpenseHandler) RemoveDocument(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		e, doc, err := h.Expenses.RemoveDocument(ctx, uid, c.Param("id"), c.Param("docId"))
		if err != nil {
			return respondError(c, "expense", err)
		}
		h.Store.Remove(doc.Filename)
		return c.JSON(http.StatusOK, e)
	})
}

func (h *ExpenseHandler) Stats(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		s, err := h.Expenses.Stats(ctx, uid)
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, s)
	})
}

// ChartData returns budget and spent per category, biggest spend first.
func (h *ExpenseHandler) ChartData(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		points, err := h.Expenses.ChartData(ctx, uid)
		if err != nil {
			return respondError(c, "expense", err)
		}
		return c.JSON(http.StatusOK, points)
	})
}
