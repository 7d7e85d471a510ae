// ocr-worker runs one Tesseract recognition pass over a single image and
// writes the result to stdout as JSON. It lives in its own binary so the
// server can kill it when the native call hangs past the deadline.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/finsight/backend/internal/infrastructure/ocr"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <image-path>\n", os.Args[0])
		os.Exit(2)
	}

	output, err := recognize(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocr-worker: %v\n", err)
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "ocr-worker: encoding output: %v\n", err)
		os.Exit(1)
	}
}

func recognize(imagePath string) (*ocr.WorkerOutput, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if prefix := os.Getenv("FINSIGHT_TESSDATA_PREFIX"); prefix != "" {
		client.SetTessdataPrefix(prefix)
	}

	if err := client.SetLanguage("eng"); err != nil {
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	output := &ocr.WorkerOutput{Text: text}

	// Line-level boxes carry per-line confidence; without them the parent
	// process falls back to a text-only result.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return output, nil
	}

	for _, box := range boxes {
		line := strings.TrimSpace(box.Word)
		if line == "" {
			continue
		}
		output.Lines = append(output.Lines, ocr.WorkerLine{
			Text:       line,
			Confidence: box.Confidence / 100.0,
		})
	}

	return output, nil
}
