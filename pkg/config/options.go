package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mrtbatch/mrtbatch/pkg/batch"
	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("scripttype", validateScriptType)
	return v
}

func validateScriptType(fl validator.FieldLevel) bool {
	_, err := pathconv.ParseScriptType(fl.Field().String())
	return err == nil
}

// Validate checks the command-line rules and the value shapes. It touches
// no files; see the validation package for existence checks.
func (o *Options) Validate() error {
	switch {
	case o.ListFile == "" && o.Directory == "":
		return mrterrors.New(mrterrors.CodeMissingInput,
			"either the -f,--file switch or the -d,--dir switch is required")
	case o.ListFile != "" && o.Directory != "":
		return mrterrors.New(mrterrors.CodeConflictingInputs,
			"both the -f,--file and -d,--dir switch cannot be used together, please use one or the other")
	case o.Template == "":
		return mrterrors.New(mrterrors.CodeMissingArgument, "-p,--prmfile switch is required")
	}

	return o.ValidateSettings()
}

// ValidateSettings checks only the value shapes of the persistent settings.
func (o *Options) ValidateSettings() error {
	if err := validate.Struct(o); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator output into one argument error
// naming each offending field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return mrterrors.Wrap(err, mrterrors.CodeInvalidArgument, "invalid options")
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "scripttype":
			msgs = append(msgs, fmt.Sprintf("%s: valid values are BATCH, SCRIPT, or CSCRIPT, but found %q", field, e.Value()))
		case "required":
			msgs = append(msgs, field+": must not be empty")
		case "excludesall":
			msgs = append(msgs, field+": must be a file name, not a path")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of %s", field, e.Param()))
		case "hostname_port":
			msgs = append(msgs, field+": must be host:port")
		case "url":
			msgs = append(msgs, field+": must be a URL")
		default:
			msgs = append(msgs, field+": invalid value")
		}
	}
	sort.Strings(msgs)
	return mrterrors.New(mrterrors.CodeInvalidArgument, "invalid options: "+strings.Join(msgs, "; "))
}

// ResolveScriptType returns the configured script type, or the host
// default when none is set.
func (o *Options) ResolveScriptType(host pathconv.Host) (pathconv.ScriptType, error) {
	st, err := pathconv.ParseScriptType(o.ScriptType)
	if err != nil {
		return pathconv.ScriptNotDefined, mrterrors.Wrap(err, mrterrors.CodeInvalidArgument, "invalid type")
	}
	if st == pathconv.ScriptNotDefined {
		st = host.DefaultScriptType()
	}
	return st, nil
}

// BatchFileName returns the name of the script to write for type st.
func (o *Options) BatchFileName(st pathconv.ScriptType) string {
	return batch.FileName(o.BatchName, st)
}
