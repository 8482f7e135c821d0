package onnx

import (
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

type session struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

type sessionParams struct {
	modelPath    string
	seqLen       int
	numLabels    int
	outputName   string
	outputDims   []int64
	intraThreads int
	interThreads int
	tokenType    bool
}

func newSession(p sessionParams) (*session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if p.intraThreads > 0 {
		if err := opts.SetIntraOpNumThreads(p.intraThreads); err != nil {
			return nil, fmt.Errorf("set intra threads: %w", err)
		}
	}
	if p.interThreads > 0 {
		if err := opts.SetInterOpNumThreads(p.interThreads); err != nil {
			return nil, fmt.Errorf("set inter threads: %w", err)
		}
	}

	inputShape := ort.NewShape(1, int64(p.seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	s := &session{inputIDs: inputIDs, attentionMask: attnMask}
	if p.tokenType {
		s.tokenTypeIDs, err = ort.NewEmptyTensor[int64](inputShape)
		if err != nil {
			s.destroy()
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
	}
	s.output, err = ort.NewEmptyTensor[float32](buildOutputShape(p.outputDims, p.seqLen, p.numLabels))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	inputValues := []ort.Value{s.inputIDs, s.attentionMask}
	if s.tokenTypeIDs != nil {
		inputNames = append(inputNames, "token_type_ids")
		inputValues = append(inputValues, s.tokenTypeIDs)
	}
	outName := p.outputName
	if outName == "" {
		outName = "logits"
	}
	s.session, err = ort.NewAdvancedSession(p.modelPath, inputNames, []string{outName}, inputValues, []ort.Value{s.output}, opts)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return s, nil
}

// run copies one encoded window into the input tensors and returns the
// logits, laid out [seqLen][numLabels].
func (s *session) run(ids, mask []int64) ([]float32, error) {
	copy(s.inputIDs.GetData(), ids)
	copy(s.attentionMask.GetData(), mask)
	if s.tokenTypeIDs != nil {
		clear(s.tokenTypeIDs.GetData())
	}
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	return s.output.GetData(), nil
}

func (s *session) destroy() {
	if s.session != nil {
		_ = s.session.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{s.inputIDs, s.attentionMask, s.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
}

func selectOutputInfo(modelPath string) (string, []int64, error) {
	_, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", nil, err
	}
	if len(outputs) == 0 {
		return "", nil, fmt.Errorf("no outputs found")
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return out.Name, out.Dimensions, nil
		}
	}
	if len(outputs) == 1 {
		return outputs[0].Name, outputs[0].Dimensions, nil
	}
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	return "", nil, fmt.Errorf("multiple outputs found without logits: %v", names)
}

// buildOutputShape fills dynamic dimensions of a [batch, seq, labels]
// token-classification output.
func buildOutputShape(dims []int64, seqLen, numLabels int) ort.Shape {
	if len(dims) != 3 {
		return ort.NewShape(1, int64(seqLen), int64(numLabels))
	}
	shape := make([]int64, 3)
	fallback := []int64{1, int64(seqLen), int64(numLabels)}
	for i, v := range dims {
		if v > 0 {
			shape[i] = v
		} else {
			shape[i] = fallback[i]
		}
	}
	return ort.Shape(shape)
}
