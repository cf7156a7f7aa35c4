// Package transport implements the controller side of the device wire
// protocol: a one-shot TCP exchange carrying a minimal, HTTP-looking request
// (start line, optional headers, body bounded by Content-Length).
//
// It is not HTTP: devices are tiny TCP
// listeners that only understand the two request shapes below.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SensorRequest is the smallest request a sensor answers with its latest Datum.
const SensorRequest = "GET / HTTP/1.1\r\n\r\n"

const ContentTypeJSON = "application/json"

// MAX_BODY bounds the body a peer may announce with Content-Length.
const MAX_BODY = 64 << 10

// MAX_RESPONSE bounds a whole response, headers included.
const MAX_RESPONSE = MAX_BODY + 8<<10

// ErrTooLarge is returned for a body or response beyond the bounds above.
var ErrTooLarge = errors.New("message too large")

// ActuatorRequest frames a command body for an actuator.
func ActuatorRequest(contentType string, body []byte) []byte {
	head := fmt.Sprintf("POST HTTP/1.1\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, len(body))
	return append([]byte(head), body...)
}

// Response frames an acknowledgement the way actuators send it back.
func Response(status string, body []byte) []byte {
	head := fmt.Sprintf("HTTP/1.1 %s\r\nContent-Length: %d\r\n\r\n", status, len(body))
	return append([]byte(head), body...)
}

// Request is a request as read by a device endpoint.
type Request struct {
	Method  string
	Target  string
	Headers map[string]string // canonical lower-case keys
	Body    []byte
}

func (r *Request) Header(key string) string {
	return r.Headers[strings.ToLower(key)]
}

// ReadRequest reads the start line and headers up to the blank line, then
// exactly Content-Length bytes of body (none when the header is absent).
func ReadRequest(r *bufio.Reader) (*Request, error) {
	start, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || len(start) == 0) {
		return nil, err
	}
	fields := strings.Fields(start)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty request line")
	}
	req := &Request{
		Method:  fields[0],
		Headers: make(map[string]string),
	}
	if len(fields) > 2 {
		req.Target = fields[1]
	}
	if err == io.EOF {
		return req, nil
	}

	length, err := readHeaders(r, req.Headers)
	if err != nil {
		return req, err
	}
	if length > MAX_BODY {
		return req, fmt.Errorf("request body of %d bytes: %w", length, ErrTooLarge)
	}
	if length > 0 {
		var body bytes.Buffer
		if _, err := io.CopyN(&body, r, int64(length)); err != nil {
			return req, fmt.Errorf("short request body: %w", err)
		}
		req.Body = body.Bytes()
	}
	return req, nil
}

func readHeaders(r *bufio.Reader, headers map[string]string) (int, error) {
	length := 0
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if err == io.EOF {
				return length, nil
			}
			return length, err
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			key := strings.ToLower(strings.TrimSpace(k))
			headers[key] = strings.TrimSpace(v)
			if key == "content-length" {
				n, perr := strconv.Atoi(headers[key])
				if perr != nil || n < 0 {
					return 0, fmt.Errorf("invalid Content-Length %q", headers[key])
				}
				length = n
			}
		}
		if err != nil {
			if err == io.EOF {
				return length, nil
			}
			return length, err
		}
	}
}

// ReadResponse reads until the peer closes the connection, or, once a
// Content-Length header has been seen, until that many body bytes follow
// the blank line ending the headers. Responses beyond MAX_RESPONSE bytes
// fail with ErrTooLarge.
func ReadResponse(r io.Reader) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, MAX_RESPONSE+1))
	var sb strings.Builder
	length := -1
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if sb.Len() > MAX_RESPONSE {
			return "", fmt.Errorf("response over %d bytes: %w", MAX_RESPONSE, ErrTooLarge)
		}
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if len(trimmed) == 0 && length >= 0 {
			if length > MAX_BODY {
				return "", fmt.Errorf("response body of %d bytes: %w", length, ErrTooLarge)
			}
			n, err := io.CopyN(&sb, br, int64(length))
			if err != nil {
				return sb.String(), fmt.Errorf("short response body (%d/%d bytes): %w", n, length, err)
			}
			return sb.String(), nil
		}
		if k, v, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "Content-Length") {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
				length = n
			}
		}
	}
}

// LastLine returns the last non-empty line of a response, trimmed.
func LastLine(response string) string {
	lines := strings.Split(response, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); len(line) != 0 {
			return line
		}
	}
	return ""
}

// Body returns what follows the blank line ending the headers, or the whole
// response when it carries no headers.
func Body(response string) string {
	if _, body, found := strings.Cut(response, "\r\n\r\n"); found {
		return body
	}
	return response
}
