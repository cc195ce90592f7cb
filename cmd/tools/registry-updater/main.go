// cmd/tools/registry-updater/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/pkg/registry"
)

const defaultRegistryPath = "pkg/registry/activity-registry.json"

var registryPath string

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	commands := map[string]func([]string) int{
		"add":      runAdd,
		"update":   runUpdate,
		"validate": runValidate,
		"export":   runExport,
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		help()
		return
	}
	os.Exit(run(os.Args[2:]))
}

func newFlagSet(name string) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ExitOnError)
	set.StringVar(&registryPath, "path", defaultRegistryPath, "Path to registry file")
	return set
}

func runAdd(args []string) int {
	set := newFlagSet("add")
	activity := registry.Activity{
		InputSchema:  map[string]interface{}{"type": "object"},
		OutputSchema: map[string]interface{}{"type": "object"},
		Timeout:      "10s",
		Workflows:    []string{},
	}
	set.StringVar(&activity.ID, "id", "", "Activity ID (e.g. ledger.token.freeze)")
	set.StringVar(&activity.DisplayName, "displayName", "", "Display name")
	set.StringVar(&activity.Description, "description", "", "Description")
	set.StringVar(&activity.Category, "category", "", "Category (token, wallet, fundraising, ledger, settlement)")
	set.StringVar(&activity.TaskType, "taskType", "", "Zeebe job type (e.g. freeze-holding)")
	set.StringVar(&activity.Version, "version", "1.0.0", "Version")
	set.StringVar(&activity.ImplementationStatus, "status", "planned", "planned, in-progress, completed or verified")
	codes := set.String("errorCodes", "", "Comma separated BPMN error codes")
	set.Parse(args)

	if activity.ID == "" || activity.DisplayName == "" || activity.Category == "" || activity.TaskType == "" {
		fmt.Println("Error: id, displayName, category and taskType are required for add.")
		set.Usage()
		return 1
	}
	activity.ErrorCodes = splitList(*codes)
	activity.Tags = []string{activity.Category}

	if err := addActivity(&activity); err != nil {
		fmt.Printf("Error adding activity: %v\n", err)
		return 1
	}
	fmt.Printf("Added %s serving %s\n", activity.ID, activity.TaskType)
	return 0
}

func runUpdate(args []string) int {
	set := newFlagSet("update")
	id := set.String("id", "", "Activity ID to update")
	field := set.String("field", "", "Field to update (status, version, timeout, retries, errorCodes, ...)")
	value := set.String("value", "", "New value for the field")
	set.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fmt.Println("Error: id, field and value are required for update.")
		set.Usage()
		return 1
	}
	if err := updateActivity(*id, *field, *value); err != nil {
		fmt.Printf("Error updating activity: %v\n", err)
		return 1
	}
	fmt.Printf("Updated %s.%s = %s\n", *id, *field, *value)
	return 0
}

func runValidate(args []string) int {
	newFlagSet("validate").Parse(args)
	if err := validateRegistry(); err != nil {
		fmt.Printf("Registry validation failed: %v\n", err)
		return 1
	}
	return 0
}

func runExport(args []string) int {
	newFlagSet("export").Parse(args)
	if err := exportDefault(); err != nil {
		fmt.Printf("Error exporting registry: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote built-in registry to %s\n", registryPath)
	return 0
}

func addActivity(activity *registry.Activity) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{
			Version:    "1.0.0",
			Activities: []registry.Activity{},
		}
	}

	for _, existing := range reg.Activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("activity with ID %s already exists", activity.ID)
		}
		if existing.TaskType == activity.TaskType {
			return fmt.Errorf("task type %s is already served by %s", activity.TaskType, existing.ID)
		}
	}

	reg.Activities = append(reg.Activities, *activity)
	return saveRegistry(reg, registryPath)
}

func updateActivity(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var target *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			target = &reg.Activities[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		target.ImplementationStatus = value
	case "version":
		target.Version = value
	case "displayName":
		target.DisplayName = value
	case "description":
		target.Description = value
	case "category":
		target.Category = value
	case "taskType":
		target.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		target.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = retries
	case "errorCodes":
		target.ErrorCodes = splitList(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, registryPath)
}

// validateRegistry checks required fields, error codes and that every input
// schema compiles.
func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
			}
		}
		for _, code := range activity.ErrorCodes {
			if !apperrors.IsKnownCode(apperrors.ErrorCode(code)) {
				return fmt.Errorf("activity %s declares unknown error code %s", activity.ID, code)
			}
		}
	}

	if _, err := validation.NewSchemaValidator(reg); err != nil {
		return err
	}

	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func exportDefault() error {
	reg, err := registry.Default()
	if err != nil {
		return err
	}
	return saveRegistry(reg, registryPath)
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := reg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file and compile its input schemas
  export   Write the built-in registry to -path
  help     Show this help message

Every command accepts -path (default ` + defaultRegistryPath + `).

Examples:
  registry-updater add -id freeze-holding -displayName "Freeze Holding" -description "Blocks transfers of one holding" -category token -taskType freeze-holding -errorCodes NOT_FOUND,INVALID_STATUS
  registry-updater update -id mint-tokens -field status -value verified
  registry-updater validate -path pkg/registry/activity-registry.json`)
}
