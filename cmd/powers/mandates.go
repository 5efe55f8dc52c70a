package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/powers-protocol/powers/pkg/domain"
	"gopkg.in/yaml.v3"
)

// mandateFile is the input of the layout command. A bare list of mandates
// is accepted too.
type mandateFile struct {
	Address  string           `yaml:"address"`
	Mandates []domain.Mandate `yaml:"mandates"`
}

// readMandates loads mandates from YAML or JSON; "-" reads stdin.
func readMandates(path string, stdin io.Reader) (*mandateFile, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mandates: %w", err)
	}
	return parseMandates(raw)
}

func parseMandates(raw []byte) (*mandateFile, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("mandate file is empty")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("failed to parse mandates: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("mandate file is empty")
	}

	var file mandateFile
	if node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&file.Mandates); err != nil {
			return nil, fmt.Errorf("failed to parse mandates: %w", err)
		}
		return &file, nil
	}
	if err := node.Content[0].Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse mandates: %w", err)
	}
	return &file, nil
}
