package authtest

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxMultipartMemory bounds in-memory multipart parsing.
const maxMultipartMemory = 32 << 20

// Echo is the JSON document written by EchoHandler.
type Echo struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Args    map[string]string `json:"args"`
	Form    map[string]string `json:"form"`
	Files   map[string]string `json:"files"`
	Headers map[string]string `json:"headers"`
	Data    string            `json:"data"`
	JSON    any               `json:"json"`
}

// EchoHandler answers every request with an Echo of its query arguments,
// form or multipart fields, uploaded files, headers and raw body. Repeated
// names keep their first value.
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echo := Echo{
			Method:  r.Method,
			URL:     r.URL.String(),
			Args:    make(map[string]string),
			Form:    make(map[string]string),
			Files:   make(map[string]string),
			Headers: make(map[string]string),
		}

		for k, v := range r.URL.Query() {
			echo.Args[k] = v[0]
		}

		for k, v := range r.Header {
			echo.Headers[k] = strings.Join(v, ", ")
		}

		if r.Host != "" {
			echo.Headers["Host"] = r.Host
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

		switch mediaType {
		case "multipart/form-data":
			if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			for k, v := range r.MultipartForm.Value {
				echo.Form[k] = v[0]
			}

			for k, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				data, err := io.ReadAll(f)
				f.Close()

				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				echo.Files[k] = string(data)
			}

		case "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			for k, v := range r.PostForm {
				echo.Form[k] = v[0]
			}

		default:
			data, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			echo.Data = string(data)

			if mediaType == "application/json" && len(data) > 0 {
				_ = json.Unmarshal(data, &echo.JSON)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo)
	})
}
