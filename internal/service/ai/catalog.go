package ai

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"objectvision/internal/model"
)

// cocoNames are the 80 COCO classes in the order YOLO models emit them.
var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// cocoPaperGaps are the ids of the 91-entry COCO label map that have no
// annotations and are never emitted by TF object-detection models.
var cocoPaperGaps = map[int]bool{12: true, 26: true, 29: true, 30: true, 45: true, 66: true, 68: true, 69: true, 71: true, 83: true}

// COCO80 returns the YOLO class catalog, ids 0..79.
func COCO80() *model.ClassCatalog {
	c, err := model.NewClassCatalogFromNames(cocoNames)
	if err != nil {
		panic(err)
	}
	return c
}

// COCO91 returns the same classes on the ids used by SSD/TF label maps (1..90).
func COCO91() *model.ClassCatalog {
	entries := make([]model.ClassEntry, 0, len(cocoNames))
	id := 1
	for _, name := range cocoNames {
		for cocoPaperGaps[id] {
			id++
		}
		entries = append(entries, model.ClassEntry{ID: id, Name: name})
		id++
	}
	c, err := model.NewClassCatalog(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadLabels reads one class name per line; the line index (ignoring blank
// and # comment lines) becomes the class id, offset by firstID.
func LoadLabels(path string, firstID int) (*model.ClassCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	var entries []model.ClassEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, model.ClassEntry{ID: firstID + len(entries), Name: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}

	return model.NewClassCatalog(entries)
}

// DefaultCatalog picks the catalog for a model output format. A labels file
// takes precedence; SSD label maps start at 1.
func DefaultCatalog(format, labelsPath string) (*model.ClassCatalog, error) {
	ssd := format == "ssd"
	if labelsPath != "" {
		firstID := 0
		if ssd {
			firstID = 1
		}
		return LoadLabels(labelsPath, firstID)
	}
	if ssd {
		return COCO91(), nil
	}
	return COCO80(), nil
}
