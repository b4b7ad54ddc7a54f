package handlers

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"diaryhub-backend/internal/services"
	"diaryhub-backend/internal/storage"

	_ "golang.org/x/image/webp"
)

const imagesField = "images"

var errNotImage = errors.New("not a supported image")

// diaryForm is a parsed multipart diary submission. Close must be called once the blobs are consumed.
type diaryForm struct {
	input services.DiaryInput
	blobs []storage.Blob
	files []multipart.File
	form  *multipart.Form
}

func (f *diaryForm) Close() {
	for _, file := range f.files {
		file.Close()
	}
	if f.form != nil {
		f.form.RemoveAll()
	}
}

// formError is a client mistake in the submitted form
type formError struct {
	msg    string
	status int
}

func (e *formError) Error() string { return e.msg }

func (e *formError) statusCode() int {
	if e.status == 0 {
		return http.StatusBadRequest
	}
	return e.status
}

func tooLarge(maxBody int64) *formError {
	return &formError{
		msg:    fmt.Sprintf("request body must be at most %d MB", maxBody>>20),
		status: http.StatusRequestEntityTooLarge,
	}
}

// parseDiaryForm reads a multipart diary submission. maxBody bounds the whole body,
// maxMemory only the part kept in memory.
func parseDiaryForm(w http.ResponseWriter, r *http.Request, maxMemory, maxBody int64, maxImages int) (*diaryForm, error) {
	if maxBody > 0 {
		if r.ContentLength > maxBody {
			return nil, tooLarge(maxBody)
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge(maxBody)
		}
		return nil, &formError{msg: "Invalid multipart form"}
	}

	form := &diaryForm{form: r.MultipartForm}

	diaryDate, err := parseDiaryDate(r.FormValue("diaryDate"))
	if err != nil {
		form.Close()
		return nil, &formError{msg: "diaryDate must be a date like 2024-05-01"}
	}

	form.input = services.DiaryInput{
		Title:     r.FormValue("title"),
		Content:   r.FormValue("content"),
		Mood:      r.FormValue("mood"),
		Weather:   r.FormValue("weather"),
		State:     r.FormValue("state"),
		DiaryDate: diaryDate,
		IsPublic:  r.FormValue("isPublic") == "true",
		Latitude:  parseCoordinate(r.FormValue("latitude")),
		Longitude: parseCoordinate(r.FormValue("longitude")),
	}

	headers := r.MultipartForm.File[imagesField]
	if maxImages > 0 && len(headers) > maxImages {
		form.Close()
		return nil, &formError{msg: fmt.Sprintf("at most %d images are allowed", maxImages)}
	}

	for _, fh := range headers {
		blob, file, err := openImage(fh)
		if file != nil {
			form.files = append(form.files, file)
		}
		if err != nil {
			form.Close()
			return nil, &formError{msg: fmt.Sprintf("%s: %v", fh.Filename, err)}
		}
		form.blobs = append(form.blobs, blob)
	}

	return form, nil
}

// openImage opens an uploaded file and checks that it decodes as an image
func openImage(fh *multipart.FileHeader) (storage.Blob, multipart.File, error) {
	file, err := fh.Open()
	if err != nil {
		return storage.Blob{}, nil, err
	}

	_, format, err := image.DecodeConfig(file)
	if err != nil {
		return storage.Blob{}, file, errNotImage
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return storage.Blob{}, file, err
	}

	return storage.Blob{
		Filename:    fh.Filename,
		ContentType: "image/" + format,
		Size:        fh.Size,
		Data:        file,
	}, file, nil
}

// parseDiaryDate accepts a calendar date or an RFC 3339 timestamp. Empty input yields the zero time.
func parseDiaryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseCoordinate falls back to 0 for anything that is not a finite number
func parseCoordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
