package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/gin-gonic/gin"
)

// BindJSON decodes the body into out. Field rules are checked later by the
// validation package, so only malformed JSON is rejected here.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondErr(ctx, parseBindError(err, out))
		return false
	}

	return true
}

func parseBindError(err error, out interface{}) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation([]string{fmt.Sprintf("Request body must be at most %d bytes", tooLarge.Limit)})
	}

	if errors.Is(err, io.EOF) {
		return apperr.Validation([]string{"Request body is required"})
	}

	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) {
		return apperr.Validation([]string{"Request body is not valid JSON"})
	}

	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		field := jsonPath(baseStructType(out), typeError.Field)
		if field == "" {
			field = "body"
		}
		return apperr.Validation([]string{
			fmt.Sprintf("%s must be of type %s", field, typeError.Type.String()),
		})
	}

	return apperr.Validation([]string{"Invalid request body"})
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonPath maps a Go dotted field path onto the json tag names of rootType.
func jsonPath(rootType reflect.Type, dotPath string) string {
	dotPath = strings.TrimSpace(dotPath)
	if dotPath == "" {
		return ""
	}

	current := rootType
	parts := strings.Split(dotPath, ".")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		name := part
		var next reflect.Type

		if current != nil && current.Kind() == reflect.Struct {
			if sf, ok := current.FieldByName(part); ok {
				name = jsonNameFromStructField(sf)
				next = sf.Type
				for next.Kind() == reflect.Pointer {
					next = next.Elem()
				}
			}
		}

		out = append(out, name)
		current = next
	}

	return strings.Join(out, ".")
}

func jsonNameFromStructField(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}
