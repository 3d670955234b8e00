// cmd/tools/manifest-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/pkg/registry"
)

const defaultPath = "configs/agent-manifest.json"

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	initPath := initCmd.String("path", defaultPath, "Path to manifest file")
	force := initCmd.Bool("force", false, "Overwrite an existing manifest")

	addPath := addCmd.String("path", defaultPath, "Path to manifest file")
	idAdd := addCmd.String("id", "", "Agent ID (e.g., reporting-agent)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Reporting)")
	description := addCmd.String("description", "", "Description shown to the router")
	category := addCmd.String("category", "", "Task category (e.g., reporting)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", registry.StatusPlanned, "Implementation Status (planned, completed)")
	examples := addCmd.String("examples", "", "Example utterances, separated by ';'")

	updatePath := updateCmd.String("path", defaultPath, "Path to manifest file")
	idUpdate := updateCmd.String("id", "", "Agent ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, description, examples, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultPath, "Path to manifest file")
	listPath := listCmd.String("path", defaultPath, "Path to manifest file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		err = initManifest(*initPath, *force)
		if err == nil {
			fmt.Printf("Wrote default manifest to %s\n", *initPath)
		}

	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: id, displayName, description, and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err = addAgent(*addPath, registry.Agent{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			ImplementationStatus: *implStatus,
			Examples:             splitExamples(*examples),
			Tags:                 []string{},
		})
		if err == nil {
			fmt.Printf("Added agent: %s\n", *idAdd)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateAgent(*updatePath, *idUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated agent %s, field %s to %s\n", *idUpdate, *field, *value)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		var m *registry.AgentManifest
		m, err = load(*validatePath)
		if err == nil {
			fmt.Printf("Manifest validation passed. Found %d agents.\n", len(m.Agents))
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		var m *registry.AgentManifest
		m, err = load(*listPath)
		if err == nil {
			for _, a := range m.Agents {
				fmt.Printf("%-24s %-24s %s\n", a.ID, a.Category, a.ImplementationStatus)
			}
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func initManifest(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	return registry.SaveManifest(registry.DefaultManifest(), path)
}

func addAgent(path string, a registry.Agent) error {
	if err := checkCategory(a.Category); err != nil {
		return err
	}
	m, err := registry.LoadManifest(path)
	if os.IsNotExist(err) {
		m = &registry.AgentManifest{Version: "1.0.0"}
	} else if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	if err := m.Add(a); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return registry.SaveManifest(m, path)
}

func updateAgent(path, id, field, value string) error {
	if field == "category" {
		if err := checkCategory(value); err != nil {
			return err
		}
	}
	m, err := registry.LoadManifest(path)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	if err := m.Update(id, field, value); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return registry.SaveManifest(m, path)
}

// load reads and validates a manifest, including that every category is one
// the dispatcher knows.
func load(path string) (*registry.AgentManifest, error) {
	m, err := registry.LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for _, a := range m.Agents {
		if err := checkCategory(a.Category); err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.ID, err)
		}
	}
	return m, nil
}

func checkCategory(raw string) error {
	if c, ok := assistant.ParseCategory(raw); !ok || string(c) != raw {
		return fmt.Errorf("unknown category %q", raw)
	}
	return nil
}

func splitExamples(raw string) []string {
	out := []string{}
	for _, e := range strings.Split(raw, ";") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func help() {
	fmt.Print(`
Usage: manifest-updater <command> [flags]

Commands:
  init      Write the built-in agent manifest
  add       Add an agent to the manifest
  update    Update an existing agent's field
  validate  Validate the manifest file
  list      List agents and their categories
  help      Show this help message

Examples:
  manifest-updater init -path configs/agent-manifest.json
  manifest-updater update -id reporting-agent -field examples -value "inventario;report scorte"
  manifest-updater validate -path configs/agent-manifest.json

Use 'manifest-updater <command> -h' for more information about a command.
` + "\n")
}
