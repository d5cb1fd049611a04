package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "bboard/internal/errors"
	"bboard/internal/model"
	"bboard/internal/service"
)

// uploadField is the multipart field name carrying the optional attachment.
const uploadField = "uploadFile"

// PostHandler handles the bulletin-board endpoints.
type PostHandler struct {
	posts service.PostService
}

// NewPostHandler creates a new post handler.
func NewPostHandler(posts service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// PostForm is a create or update submission. The password is hashed before
// storage and never echoed back to the client.
type PostForm struct {
	Title    string `form:"title" validate:"required,max=100"`
	Content  string `form:"content" validate:"required"`
	Username string `form:"username" validate:"required,max=10"`
	Password string `form:"password" validate:"required"`
}

// SubmittedValues are the form fields echoed back on a validation failure so
// the client can re-render the form as entered. The password is omitted.
type SubmittedValues struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Username string `json:"username"`
}

// FormErrorResponse reports field-level validation errors together with the
// submitted values.
type FormErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	Submitted SubmittedValues   `json:"submitted"`
}

// PostView is the read-page view model.
type PostView struct {
	*model.Post
	HasAttachment bool   `json:"has_attachment"`
	Notice        string `json:"notice,omitempty"`
}

// ListView is the list-page view model.
type ListView struct {
	*service.PostPage
	Notice string `json:"notice,omitempty"`
}

// NewPostForm serves a blank create form view model.
func (h *PostHandler) NewPostForm(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"form": SubmittedValues{}})
}

// CreatePost validates the submission, persists the post and streams the
// attachment if one was uploaded. A missing file is not an error. Success
// redirects to the new post's read page.
func (h *PostHandler) CreatePost(c echo.Context) error {
	var form PostForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&form); err != nil {
		return c.JSON(http.StatusBadRequest, FormErrorResponse{
			Error:     "post could not be created",
			Code:      "VALIDATION_ERROR",
			Fields:    fieldErrors(err),
			Submitted: submittedValues(form),
		})
	}

	input := service.CreatePostInput{
		Title:    form.Title,
		Content:  form.Content,
		Username: form.Username,
		Password: form.Password,
	}

	if fh, err := c.FormFile(uploadField); err == nil && fh != nil {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
				Error: "uploaded file could not be read",
				Code:  "INVALID_UPLOAD",
			})
		}
		defer src.Close()
		input.Attachment = &service.AttachmentUpload{
			OriginalName: fh.Filename,
			Content:      src,
		}
	}

	post, err := h.posts.Create(c.Request().Context(), input)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return redirectWithNotice(c, fmt.Sprintf("/posts/%d", post.ID), "post created")
}

// GetPost renders a single post. Unknown and malformed ids both read as 404.
func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return notFound()
	}

	post, err := h.posts.Get(c.Request().Context(), id)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, PostView{
		Post:          post,
		HasAttachment: post.HasAttachment(),
		Notice:        c.QueryParam("notice"),
	})
}

// UpdatePostForm serves the current field values for the edit form.
func (h *PostHandler) UpdatePostForm(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return notFound()
	}

	post, err := h.posts.Get(c.Request().Context(), id)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, echo.Map{"form": SubmittedValues{
		Title:    post.Title,
		Content:  post.Content,
		Username: post.Username,
	}})
}

// UpdatePost applies an edit after the password check. A wrong password
// mutates nothing and surfaces as an error notice with the submitted values.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return notFound()
	}

	var form PostForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&form); err != nil {
		return c.JSON(http.StatusBadRequest, FormErrorResponse{
			Error:     "post could not be updated",
			Code:      "VALIDATION_ERROR",
			Fields:    fieldErrors(err),
			Submitted: submittedValues(form),
		})
	}

	post, err := h.posts.Update(c.Request().Context(), id, service.UpdatePostInput{
		Title:    form.Title,
		Content:  form.Content,
		Username: form.Username,
		Password: form.Password,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrWrongPassword) {
			return c.JSON(http.StatusForbidden, FormErrorResponse{
				Error:     "password does not match",
				Code:      "WRONG_PASSWORD",
				Submitted: submittedValues(form),
			})
		}
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return redirectWithNotice(c, fmt.Sprintf("/posts/%d", post.ID), "post updated")
}

// DeletePost removes a post after the password check. Success redirects to
// the list page; a wrong password redirects back to the read page with an
// error notice and mutates nothing.
func (h *PostHandler) DeletePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return notFound()
	}

	err = h.posts.Delete(c.Request().Context(), id, c.FormValue("password"))
	if err != nil {
		if errors.Is(err, apperrors.ErrWrongPassword) {
			return redirectWithNotice(c, fmt.Sprintf("/posts/%d", id), "password does not match")
		}
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return redirectWithNotice(c, "/posts", "post deleted")
}

// ListPosts renders one page of the listing. An absent or unparsable page
// parameter defaults to 1; this endpoint does not fail on bad input.
func (h *PostHandler) ListPosts(c echo.Context) error {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}

	pageData, err := h.posts.List(c.Request().Context(), service.ListQuery{
		Page:          page,
		SearchType:    c.QueryParam("searchType"),
		SearchKeyword: c.QueryParam("searchKeyword"),
	})
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, ListView{
		PostPage: pageData,
		Notice:   c.QueryParam("notice"),
	})
}

// DownloadAttachment streams a post's attachment. The disposition header
// restores the filename as originally uploaded, percent-encoded per RFC 5987
// so non-ASCII names survive the trip.
func (h *PostHandler) DownloadAttachment(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return notFound()
	}

	att, err := h.posts.OpenAttachment(c.Request().Context(), id)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	defer att.Content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		"attachment; filename*=UTF-8''"+rfc5987Encode(att.Name))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(att.Size, 10))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, att.Content)
}

func postID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func notFound() error {
	return echo.NewHTTPError(http.StatusNotFound, apperrors.ErrorResponse{
		Error: apperrors.ErrPostNotFound.Error(),
		Code:  "POST_NOT_FOUND",
	})
}

func redirectWithNotice(c echo.Context, target, notice string) error {
	return c.Redirect(http.StatusSeeOther, target+"?notice="+url.QueryEscape(notice))
}

func submittedValues(form PostForm) SubmittedValues {
	return SubmittedValues{
		Title:    form.Title,
		Content:  form.Content,
		Username: form.Username,
	}
}

// fieldErrors flattens validator errors into a field -> message map.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "this field is required"
		case "max":
			fields[fe.Field()] = "must be at most " + fe.Param() + " characters"
		default:
			fields[fe.Field()] = "invalid value"
		}
	}
	return fields
}

// rfc5987Encode percent-encodes a filename for the Content-Disposition
// filename* parameter. Everything outside the unreserved set is escaped,
// including spaces and parentheses.
func rfc5987Encode(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~' {
			b.WriteByte(ch)
		} else {
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
