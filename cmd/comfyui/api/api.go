// Package api wraps the comfy2go client with the graph plumbing the page
// renderer needs: loading workflow files, substituting widget values (with
// per-page placeholders), uploading referenced input images, and collecting
// outputs.
package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/natefinch/atomic"
	"github.com/richinsley/comfy2go/client"
	"github.com/richinsley/comfy2go/graphapi"
	log "github.com/sirupsen/logrus"

	"github.com/awender/fableforge/util"
)

// ComfyUI "LoadImage" node, widgets_values[0] is the filename that must be
// uploaded to the server "input/" folder first.
const NODE_TYPE_LOAD_IMAGE = "LoadImage"
const NODE_TYPE_LOAD_IMAGE_MASK = "LoadImageMask"

// Try to extract addr (hostname) & port from a rawUrl,
// which could be "127.0.0.1:8188" or "http://127.0.0.1:8188" format.
// Return: "http", "127.0.0.1", 8188.
func parseAddrFromUrl(rawURL string) (schema string, addr string, port int, err error) {
	if !strings.HasPrefix(rawURL, "http:") && !strings.HasPrefix(rawURL, "https:") {
		rawURL = "http://" + rawURL
	}
	urlObj, err := url.Parse(rawURL)
	if err != nil {
		return "", "", 0, err
	}
	if urlObj.Port() == "" {
		if urlObj.Scheme == "https" {
			return urlObj.Scheme, urlObj.Hostname(), 443, nil
		} else {
			return urlObj.Scheme, urlObj.Hostname(), 80, nil
		}
	}
	port, err = strconv.Atoi(urlObj.Port())
	if err != nil {
		return urlObj.Scheme, urlObj.Hostname(), 0, err
	}
	return urlObj.Scheme, urlObj.Hostname(), port, nil
}

type Client struct {
	*client.ComfyClient
	Base string // Base addr. E.g. "http://127.0.0.1:8188"
}

// fileType: input | output.
func (c *Client) CheckFileExists(filename string, fileType client.ImageType) (exists bool, err error) {
	params := url.Values{}
	params.Add("filename", filename)
	params.Add("type", string(fileType))
	resp, err := http.DefaultClient.Get(fmt.Sprintf("%s/view?%s", c.Base, params.Encode()))
	if err != nil {
		return false, err
	}
	exists = resp.StatusCode == 200
	return exists, nil
}

func (c *Client) CheckInputFileExists(filename string) (exists bool, err error) {
	return c.CheckFileExists(filename, client.InputImageType)
}

// clientaddr : "127.0.0.1:8188" or "http://127.0.0.1:8188" .
func CreateAndInitComfyClient(clientaddr string) (comfyClient *Client, err error) {
	schema, addr, port, err := parseAddrFromUrl(clientaddr)
	if err != nil {
		return nil, err
	}
	if schema != "http" && schema != "https" {
		return nil, fmt.Errorf("unsupported schema: %s", schema)
	}
	interClient := client.NewComfyClient(addr, port, nil)
	if !interClient.IsInitialized() {
		err = interClient.Init()
		if err != nil {
			return nil, err
		}
	}
	base := schema + "://" + addr
	if schema == "http" && port != 80 || schema == "https" && port != 443 {
		base = fmt.Sprintf("%s:%d", base, port)
	}

	return &Client{
		ComfyClient: interClient,
		Base:        base,
	}, nil
}

// comfyui output file
type ComfyuiOutput struct {
	Data     []byte // image data
	Filename string // unique filename. format: "cu-<hash>.png". hash is sha256 url-safe base64.
	Text     string // exists if it's "text" type data output
	Type     string // "output", "input"
}

type ComfyuiOutputs []*ComfyuiOutput

// FirstImage returns the first non-text output, or nil.
func (outputs ComfyuiOutputs) FirstImage() *ComfyuiOutput {
	for _, output := range outputs {
		if output.Type != "text" {
			return output
		}
	}
	return nil
}

// Save the first output to filename. If filename is "-", output to stdout.
// If filename exists and force is false, returns an error.
func (outputs ComfyuiOutputs) Save(filename string, force bool) (err error) {
	for _, output := range outputs {
		if output.Type == "text" {
			fmt.Printf("text output %s: %s\n", output.Filename, output.Text)
			continue
		}
		if filename == "-" {
			_, err = os.Stdout.Write(output.Data)
			return err
		}
		if exists, err := util.FileExists(filename); err != nil || (exists && !force) {
			return fmt.Errorf("output file %q exists or access failed. err: %w", filename, err)
		}
		return atomic.WriteFile(filename, bytes.NewReader(output.Data))
	}
	return fmt.Errorf("no output")
}

// generate a global unique "cu-<hash>.png" style filename for a ComfyUI output file.
func genFilename(data []byte, output *client.DataOutput) string {
	s := sha256.New()
	s.Write(data)
	b64 := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(s.Sum(nil))
	ext := filepath.Ext(output.Filename)
	return "cu-" + b64 + ext
}

// Ensure all input images in graph exist on the ComfyUI server, upload
// missing files. node: LoadImage; filename: widgets_values[0].
// Note: it modifies the graph.
func (comfyClient *Client) PrepareGraph(graph *graphapi.Graph) (err error) {
	for _, node := range graph.Nodes {
		if node.Type != NODE_TYPE_LOAD_IMAGE && node.Type != NODE_TYPE_LOAD_IMAGE_MASK || node.WidgetValues == nil {
			continue
		}
		weightValues, ok := node.WidgetValues.([]any)
		if !ok || len(weightValues) == 0 {
			log.Warnf("node %d (LoadImage) has no widget values", node.ID)
			continue
		}
		filename, ok := weightValues[0].(string)
		if !ok {
			log.Warnf("node %d (LoadImage) has no filename in widget values", node.ID)
			continue
		}
		hash, err := util.Sha256sumFile(filename, false)
		if err != nil {
			return fmt.Errorf("failed to calc input image %q hash: %w", filename, err)
		}
		serverFilename := hash + filepath.Ext(filename)
		exists, err := comfyClient.CheckInputFileExists(serverFilename)
		if err != nil {
			return fmt.Errorf("failed to check if input file %q (%q) exists: %w", filename, serverFilename, err)
		}
		if !exists {
			log.Printf("uploading input file %q => %q", filename, serverFilename)
			file, err := os.Open(filename)
			if err != nil {
				return err
			}
			defer file.Close()
			_, err = comfyClient.UploadFileFromReader(file, serverFilename, false, client.InputImageType, "", nil)
			if err != nil {
				return fmt.Errorf("failed to upload input file %q: %w", filename, err)
			}
			err = SetGraphNodeWidgetValue(graph, node.ID, "0", serverFilename, nil)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// RunWorkflow queues the graph and waits for the workflow to complete,
// collecting any image or GIF outputs. Each returned output has a globally
// unique filename.
func (comfyClient *Client) RunWorkflow(graph *graphapi.Graph) (outputs ComfyuiOutputs, err error) {
	item, err := comfyClient.QueuePrompt(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to queue prompt: %w", err)
	}
	defer func() {
		go func() {
			// read and discard all remaining messages in item.Messages channel.
			for range item.Messages {
			}
		}()
	}()

	// continuously read messages from the QueuedItem until we get the "stopped" message type
	for continueLoop := true; continueLoop; {
		msg := <-item.Messages
		switch msg.Type {
		case "stopped":
			// if we were stopped for an exception, display the exception message
			qm := msg.ToPromptMessageStopped()
			if qm.Exception != nil {
				return nil, fmt.Errorf("exception: %v", qm.Exception)
			}
			continueLoop = false
		case "data":
			qm := msg.ToPromptMessageData()
			// data objects have the fields: Filename, Subfolder, Type
			for k, v := range qm.Data {
				log.Debugf("comfyui item data: %s => %v", k, v)
				if k == "images" || k == "gifs" {
					for _, output := range v {
						imgData, err := comfyClient.GetImage(output)
						if err != nil {
							return outputs, fmt.Errorf("failed to get image: %w", err)
						}
						if imgData == nil || len(*imgData) == 0 {
							log.Warnf("image data is empty for output %v", output)
							continue
						}
						outputs = append(outputs, &ComfyuiOutput{
							Data:     *imgData,
							Filename: genFilename(*imgData, &output),
							Text:     output.Text,
							Type:     output.Type,
						})
					}
					return outputs, nil
				}
			}
		default: // progress
		}
	}
	return outputs, fmt.Errorf("workflow stopped without producing outputs")
}

// Load graph from filename, if it's "-", read from stdin.
func NewGraph(comfyClient *Client, filename string) (graph *graphapi.Graph, err error) {
	var data []byte
	if filename == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
	} else {
		data, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	// json workflow
	if utf8.Valid(data) {
		var obj map[string]any
		err = json.Unmarshal(data, &obj)
		if err != nil {
			return nil, err
		}
		// Remove note nodes that comfy2go doesn't yet support.
		if nodes, ok := obj["nodes"].([]any); ok {
			var filteredNodes []any
			for _, node := range nodes {
				if nodeMap, isMap := node.(map[string]any); isMap {
					if nodeType, typeOk := nodeMap["type"].(string); typeOk &&
						(nodeType == "MarkdownNote" || nodeType == "Note") {
						continue
					}
				}
				filteredNodes = append(filteredNodes, node)
			}
			obj["nodes"] = filteredNodes
			data, err = json.Marshal(obj)
			if err != nil {
				return nil, err
			}
		}
		graph, _, err = comfyClient.NewGraphFromJsonString(string(data))
	} else {
		// png workflow
		graph, _, err = comfyClient.NewGraphFromPNGReader(bytes.NewReader(data))
	}
	return graph, err
}

// SetGraphNodeWidgetValue sets one widget value. accessor: a single array
// index. Any "%key%" placeholder in a string value is replaced from subs
// before type coercion, so workflow templates can reference the current
// page's prompts and seed.
func SetGraphNodeWidgetValue(graph *graphapi.Graph, nodeId int, accessor string, value any, subs map[string]string) (err error) {
	node := graph.GetNodeById(nodeId)
	if node == nil {
		return fmt.Errorf("node %d not found", nodeId)
	}
	if node.WidgetValues == nil {
		return fmt.Errorf("node %d has no widget values", nodeId)
	}
	// widgets_values can be an array of values, or a map of values. Only
	// array values are supported at this time.
	arr, ok := node.WidgetValues.([]any)
	if !ok {
		return fmt.Errorf("node %d widget values is not an array", nodeId)
	}
	index, err := strconv.Atoi(accessor)
	if err != nil {
		return fmt.Errorf("accessor is not int")
	}
	if index < 0 || index >= len(arr) {
		return fmt.Errorf("index %d out of bounds for node %d widget values (len %d)", index, nodeId, len(arr))
	}

	if str, ok := value.(string); ok {
		for key, sub := range subs {
			str = strings.ReplaceAll(str, "%"+key+"%", sub)
		}
		value = str
	}

	// if new value and existing value have different types (string / number),
	// coerce value to match the existing type
	switch arr[index].(type) {
	case string:
		if v, isString := value.(string); isString {
			arr[index] = v
		} else {
			arr[index] = fmt.Sprintf("%v", value)
		}
	case float64: // JSON unmarshals numbers to float64 by default
		if v, isFloat := value.(float64); isFloat {
			arr[index] = v
		} else if v, isInt := value.(int); isInt {
			arr[index] = float64(v)
		} else if v, isString := value.(string); isString {
			if fv, err := strconv.ParseFloat(v, 64); err == nil {
				arr[index] = fv
			} else {
				return fmt.Errorf("cannot convert string %q to float64 for node %d widget value at index %d", v, nodeId, index)
			}
		} else {
			return fmt.Errorf("unsupported value type for float64 target at node %d widget value at index %d", nodeId, index)
		}
	case bool:
		if v, isBool := value.(bool); isBool {
			arr[index] = v
		} else if v, isString := value.(string); isString {
			if bv, err := strconv.ParseBool(v); err == nil {
				arr[index] = bv
			} else {
				return fmt.Errorf("cannot convert string %q to bool for node %d widget value at index %d", v, nodeId, index)
			}
		} else {
			return fmt.Errorf("unsupported value type for bool target at node %d widget value at index %d", nodeId, index)
		}
	default:
		arr[index] = value
	}
	node.WidgetValues = arr
	return nil
}

// Return a random seed for ComfyUI of range [0, 2⁵³ - 1].
// The upper bound is capped to the MAX_SAFE_INTEGER (IEEE float64 precision
// bits) of JavaScript for compatibility.
func RandSeed() int64 {
	return util.RandInt(0, 9007199254740991)
}

// values item format: "node_id:index:value", e.g. "42:0:%scene%"
func SetGraphNodeWidgetValues(graph *graphapi.Graph, values []string, subs map[string]string) error {
	for _, item := range values {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid value format: %s, expected 'node_id:index:value'", item)
		}

		nodeID, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("invalid node ID %q: %w", parts[0], err)
		}

		if err := SetGraphNodeWidgetValue(graph, nodeID, parts[1], parts[2], subs); err != nil {
			return fmt.Errorf("failed to set widget value for node %d, accessor %s: %w", nodeID, parts[1], err)
		}
	}
	return nil
}
