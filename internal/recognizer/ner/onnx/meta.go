package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelFile is the optional per-model descriptor kept next to the weights.
//
//	onnx: model.onnx
//	max_tokens: 512
//	lowercase: false
//	label_aliases:
//	  PER: PERS
const ModelFile = "model.yaml"

// ModelSpec is the parsed model.yaml.
type ModelSpec struct {
	Onnx         string            `yaml:"onnx"`
	MaxTokens    int               `yaml:"max_tokens"`
	Lowercase    *bool             `yaml:"lowercase"`
	LabelAliases map[string]string `yaml:"label_aliases"`
}

// LoadModelSpec reads model.yaml from dir. A missing file yields a zero spec.
func LoadModelSpec(dir string) (*ModelSpec, error) {
	data, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ModelSpec{}, nil
		}
		return nil, err
	}
	var spec ModelSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ModelFile, err)
	}
	return &spec, nil
}

type modelMeta struct {
	Labels            []string
	RequiresTokenType bool
}

// loadModelMeta reads labels from config.json (id2label) and lets
// label_map.json override them when present.
func loadModelMeta(dir string) (modelMeta, error) {
	meta := modelMeta{}
	if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		var cfg struct {
			ID2Label      map[string]string `json:"id2label"`
			Label2ID      map[string]int    `json:"label2id"`
			TypeVocabSize int               `json:"type_vocab_size"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return meta, fmt.Errorf("decode config.json: %w", err)
		}
		meta.Labels = labelsFromIDMap(cfg.ID2Label)
		if len(meta.Labels) == 0 && len(cfg.Label2ID) > 0 {
			meta.Labels = labelsFromLabel2ID(cfg.Label2ID)
		}
		// RoBERTa-family configs carry type_vocab_size 1 but take no token_type_ids.
		meta.RequiresTokenType = cfg.TypeVocabSize > 1
	}

	if data, err := os.ReadFile(filepath.Join(dir, "label_map.json")); err == nil {
		var list []string
		if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
			meta.Labels = list
		} else {
			var idMap map[string]string
			if err := json.Unmarshal(data, &idMap); err != nil {
				return meta, fmt.Errorf("decode label_map.json: %w", err)
			}
			meta.Labels = labelsFromIDMap(idMap)
		}
	}
	if len(meta.Labels) == 0 {
		return meta, errors.New("no token labels found (config.json id2label or label_map.json)")
	}
	return meta, nil
}

func labelsFromIDMap(id2label map[string]string) []string {
	if len(id2label) == 0 {
		return nil
	}
	maxID := -1
	ids := make(map[int]string, len(id2label))
	for k, v := range id2label {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || id < 0 {
			continue
		}
		ids[id] = v
		if id > maxID {
			maxID = id
		}
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for id, lbl := range ids {
		labels[id] = lbl
	}
	return labels
}

func labelsFromLabel2ID(label2id map[string]int) []string {
	maxID := -1
	for _, id := range label2id {
		if id > maxID {
			maxID = id
		}
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for lbl, id := range label2id {
		if id >= 0 {
			labels[id] = lbl
		}
	}
	return labels
}

func resolveModelPath(dir, rel string) string {
	rel = strings.TrimSpace(rel)
	var candidates []string
	if rel != "" {
		candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(rel)))
	}
	candidates = append(candidates,
		filepath.Join(dir, "model.int8.onnx"),
		filepath.Join(dir, "model.onnx"),
		filepath.Join(dir, "onnx", "model.onnx"),
	)
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
