//go:build onnx
// +build onnx

package encoder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxEncoder runs a frozen transformer export and exposes its last hidden
// states. The session is opened lazily on first use.
type onnxEncoder struct {
	hidden      int
	modelPath   string
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

func newONNXEncoder(hidden int, modelPath string) Encoder {
	return &onnxEncoder{hidden: hidden, modelPath: modelPath}
}

func (p *onnxEncoder) HiddenSize() int { return p.hidden }

func (p *onnxEncoder) ensureSession() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return nil
	}
	if p.modelPath == "" {
		return fmt.Errorf("onnx model path is required")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(p.modelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	var idsName, maskName, tokTypeName string
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		if strings.Contains(n, "input_ids") || n == "ids" {
			idsName = ii.Name
		}
		if strings.Contains(n, "attention_mask") || n == "mask" {
			maskName = ii.Name
		}
		if strings.Contains(n, "token_type") {
			tokTypeName = ii.Name
		}
	}
	var inputNames []string
	for _, n := range []string{idsName, maskName, tokTypeName} {
		if n != "" {
			inputNames = append(inputNames, n)
		}
	}
	if len(inputNames) == 0 {
		// Fallback: take the first two int64 tensor inputs.
		for _, ii := range ins {
			if ii.DataType == ort.TensorElementDataTypeInt64 {
				inputNames = append(inputNames, ii.Name)
				if len(inputNames) >= 2 {
					break
				}
			}
		}
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}
	// Prefer the hidden-state output, falling back to the first float output.
	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat && strings.Contains(strings.ToLower(oi.Name), "hidden") {
			outputNames = append(outputNames, oi.Name)
			break
		}
	}
	if len(outputNames) == 0 {
		for _, oi := range outs {
			if oi.DataType == ort.TensorElementDataTypeFloat {
				outputNames = append(outputNames, oi.Name)
				break
			}
		}
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("could not determine ONNX output name")
	}

	var opts *ort.SessionOptions
	if onnxEPPreference != "" && onnxEPPreference != "cpu" {
		if o, e := ort.NewSessionOptions(); e == nil {
			_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
			_ = o.SetIntraOpNumThreads(0)
			_ = o.SetInterOpNumThreads(0)
			switch onnxEPPreference {
			case "cuda":
				if cu, e2 := ort.NewCUDAProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderCUDA(cu)
					_ = cu.Destroy()
				}
			case "tensorrt":
				if trt, e2 := ort.NewTensorRTProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderTensorRT(trt)
					_ = trt.Destroy()
				}
			case "coreml":
				_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
			case "dml":
				_ = o.AppendExecutionProviderDirectML(onnxDeviceID)
			}
			opts = o
		}
	}
	var s *ort.DynamicAdvancedSession
	if opts != nil {
		s, err = ort.NewDynamicAdvancedSession(p.modelPath, inputNames, outputNames, opts)
		_ = opts.Destroy()
	} else {
		s, err = ort.NewDynamicAdvancedSession(p.modelPath, inputNames, outputNames, nil)
	}
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	p.session = s
	p.inputNames = inputNames
	p.outputNames = outputNames
	return nil
}

func (p *onnxEncoder) EncodeBatch(ctx context.Context, inputIDs, attentionMasks [][]int64) ([][]float64, [][][]float64, error) {
	if err := p.ensureSession(); err != nil {
		return nil, nil, err
	}
	if len(inputIDs) == 0 {
		return [][]float64{}, [][][]float64{}, nil
	}
	pooled := make([][]float64, 0, len(inputIDs))
	states := make([][][]float64, 0, len(inputIDs))
	for i := 0; i < len(inputIDs); i += onnxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := min(i+onnxBatchSize, len(inputIDs))
		cp, cs, err := p.encodeChunk(inputIDs[i:end], attentionMasks[i:end])
		if err != nil {
			return nil, nil, err
		}
		pooled = append(pooled, cp...)
		states = append(states, cs...)
	}
	return pooled, states, nil
}

func (p *onnxEncoder) encodeChunk(ids, masks [][]int64) ([][]float64, [][][]float64, error) {
	batch := len(ids)
	seq := len(ids[0])
	flatIDs := make([]int64, batch*seq)
	flatMask := make([]int64, batch*seq)
	for i := 0; i < batch; i++ {
		copy(flatIDs[i*seq:(i+1)*seq], ids[i])
		if i < len(masks) {
			copy(flatMask[i*seq:(i+1)*seq], masks[i])
		}
	}
	shape := ort.NewShape(int64(batch), int64(seq))
	idsTensor, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inVals := make([]ort.Value, len(p.inputNames))
	for i, name := range p.inputNames {
		ln := strings.ToLower(name)
		switch {
		case strings.Contains(ln, "input_ids") || ln == "ids":
			inVals[i] = idsTensor
		case strings.Contains(ln, "attention_mask") || ln == "mask":
			inVals[i] = maskTensor
		default:
			zero := make([]int64, batch*seq)
			zeroTensor, e := ort.NewTensor(shape, zero)
			if e != nil {
				return nil, nil, fmt.Errorf("alloc zero tensor: %w", e)
			}
			defer zeroTensor.Destroy()
			inVals[i] = zeroTensor
		}
	}
	outs := make([]ort.Value, len(p.outputNames))
	if err := p.session.Run(inVals, outs); err != nil {
		return nil, nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type")
	}
	data := t.GetData()
	oshape := t.GetShape()
	if len(oshape) != 3 {
		return nil, nil, fmt.Errorf("unexpected output rank %d, want [batch, seq, hidden]", len(oshape))
	}
	rows, toks, hidden := int(oshape[0]), int(oshape[1]), int(oshape[2])
	if hidden != p.hidden {
		return nil, nil, fmt.Errorf("model hidden size %d does not match configured %d", hidden, p.hidden)
	}
	pooled := make([][]float64, rows)
	states := make([][][]float64, rows)
	for r := 0; r < rows; r++ {
		rowStates := make([][]float64, toks)
		for tkn := 0; tkn < toks; tkn++ {
			start := (r*toks + tkn) * hidden
			vec := make([]float64, hidden)
			for j := 0; j < hidden; j++ {
				vec[j] = float64(data[start+j])
			}
			rowStates[tkn] = vec
		}
		var mask []int64
		if r < len(masks) {
			mask = masks[r]
		}
		states[r] = rowStates
		pooled[r] = maskedMeanPool(rowStates, mask, hidden)
	}
	return pooled, states, nil
}
