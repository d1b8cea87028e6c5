package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Bind decodes the call arguments into T and validates its struct tags.
func Bind[T any](req mcp.CallToolRequest) (T, error) {
	var args T
	if raw := req.GetRawArguments(); raw != nil {
		if err := req.BindArguments(&args); err != nil {
			return args, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if err := validate.Struct(args); err != nil {
		return args, describe(err)
	}
	return args, nil
}

// Typed adapts a handler taking decoded arguments. Binding failures become
// invalid_arguments outcomes.
func Typed[T any](fn func(ctx context.Context, args T) protocol.Outcome) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) protocol.Outcome {
		args, err := Bind[T](req)
		if err != nil {
			return protocol.Fail(protocol.KindInvalidArguments, "%s", err.Error())
		}
		return fn(ctx, args)
	}
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("'%s' is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be at least %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be at most %s", field, fe.Param()))
		case "url", "http_url":
			msgs = append(msgs, fmt.Sprintf("'%s' must be a valid URL", field))
		default:
			msgs = append(msgs, fmt.Sprintf("'%s' failed %s validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
