package encoder

import (
	"strconv"
	"strings"
)

var onnxEPPreference string
var onnxDeviceID int
var onnxBatchSize int = 32

// SetONNXBatchSize sets the preferred chunk size for ONNX batched inference.
func SetONNXBatchSize(n int) {
	if n > 0 {
		onnxBatchSize = n
	}
}

// SetONNXExecutionProvider sets preferred ONNX Runtime EP: "cuda", "tensorrt", "coreml", "dml", or "cpu".
func SetONNXExecutionProvider(ep string) {
	onnxEPPreference = strings.ToLower(strings.TrimSpace(ep))
}

// SetONNXDeviceID sets the device ID used by some EPs (e.g., DirectML).
func SetONNXDeviceID(id int) { onnxDeviceID = id }

// ResolveDevice applies a configured device string to the session knobs.
// Accepted forms are "ep" or "ep:id", e.g. "cpu", "cuda", "cuda:1",
// "dml:0". A malformed id suffix leaves the device ID unchanged.
func ResolveDevice(device string, batchSize int) {
	SetONNXBatchSize(batchSize)
	ep, id, found := strings.Cut(device, ":")
	SetONNXExecutionProvider(ep)
	if found {
		if n, err := strconv.Atoi(strings.TrimSpace(id)); err == nil && n >= 0 {
			SetONNXDeviceID(n)
		}
	}
}
