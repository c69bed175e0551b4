package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

const (
	faceVerifyPath     = "/api/face_auth/verify"
	faceField          = "image"
	faceFilename       = "verification.jpg"
	defaultContentType = "image/jpeg"
)

type faceResponse struct {
	envelope
	UserID string `json:"user_id"`
}

// RecognizeFace uploads the frame as a multipart image and returns the
// recognized subject ID.
func (c *Client) RecognizeFace(ctx context.Context, frame model.Frame) (model.Result[string], error) {
	const op = "recognize face"

	body, contentType, err := faceUpload(frame)
	if err != nil {
		return model.Result[string]{}, fmt.Errorf("%s: %w", op, err)
	}

	var out faceResponse
	err = c.do(ctx, op, http.MethodPost, faceVerifyPath, contentType, body, &out)
	if msg, declined := faceDeclined(err); declined {
		return model.Fail[string](msg), nil
	}
	if err != nil {
		return model.Result[string]{}, err
	}

	if !out.ok() || out.UserID == "" {
		return model.Fail[string](out.message()), nil
	}
	return model.Ok(out.UserID, out.message()), nil
}

// faceDeclined reports whether err is the backend answering an unmatched face
// with a 4xx success=false envelope, such as 404 "User not found".
func faceDeclined(err error) (string, bool) {
	var te *driven.TransportError
	if !errors.As(err, &te) || !te.Declined || !te.ClientError() {
		return "", false
	}
	return te.Message, true
}

func faceUpload(frame model.Frame) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ct := frame.ContentType
	if ct == "" {
		ct = defaultContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, faceField, faceFilename))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating image part: %w", err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", fmt.Errorf("writing image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
