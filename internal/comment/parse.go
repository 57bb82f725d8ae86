package comment

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultColor is used when a comment carries no usable color.
const DefaultColor = "#ffffff"

// ErrUnknownFormat is returned by Load for unsupported file extensions.
var ErrUnknownFormat = errors.New("unknown comment file format")

// Load reads comments from a file, picking the parser from the extension:
// .json (dandanplay), .xml (bilibili) or .lrc (lyrics shown as bottom comments).
func Load(path string) ([]Comment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseDandanJSON(f)
	case ".xml":
		return ParseBilibiliXML(f)
	case ".lrc":
		return ParseLRC(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

type dandanDoc struct {
	Count    int             `json:"count"`
	Comments []dandanComment `json:"comments"`
}

type dandanComment struct {
	CID json.Number `json:"cid"`
	P   string      `json:"p"`
	M   string      `json:"m"`
}

// ParseDandanJSON parses the dandanplay comment API format, where each entry
// carries "p" as "time,mode,color,user". Malformed entries are skipped.
func ParseDandanJSON(r io.Reader) ([]Comment, error) {
	var doc dandanDoc
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dandanplay comments: %w", err)
	}

	comments := make([]Comment, 0, len(doc.Comments))
	for i, raw := range doc.Comments {
		fields := strings.Split(raw.P, ",")
		if len(fields) < 3 {
			continue
		}
		c, ok := build(raw.M, fields[0], fields[1], fields[2])
		if !ok {
			continue
		}
		if len(fields) > 3 {
			c.SourceTag = sourceTagFromUser(fields[3])
		} else {
			c.SourceTag = "dandan"
		}
		c.ID = raw.CID.String()
		if c.ID == "" {
			c.ID = "d" + strconv.Itoa(i)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

type bilibiliDoc struct {
	Items []bilibiliItem `xml:"d"`
}

type bilibiliItem struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// ParseBilibiliXML parses the bilibili XML dump format, where each <d> element
// carries "p" as "time,mode,size,color,timestamp,pool,user,rowid".
func ParseBilibiliXML(r io.Reader) ([]Comment, error) {
	var doc bilibiliDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode bilibili comments: %w", err)
	}

	comments := make([]Comment, 0, len(doc.Items))
	for i, item := range doc.Items {
		fields := strings.Split(item.P, ",")
		if len(fields) < 4 {
			continue
		}
		c, ok := build(item.Text, fields[0], fields[1], fields[3])
		if !ok {
			continue
		}
		c.SourceTag = "bilibili"
		if len(fields) > 7 && fields[7] != "" {
			c.ID = "b" + fields[7]
		} else {
			c.ID = "b" + strconv.Itoa(i)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// build validates the shared fields of both formats.
func build(text, timeField, modeField, colorField string) (Comment, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, false
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(timeField), 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return Comment{}, false
	}

	mode, err := strconv.Atoi(strings.TrimSpace(modeField))
	if err != nil {
		return Comment{}, false
	}
	motion, ok := motionFromMode(mode)
	if !ok {
		return Comment{}, false
	}

	return Comment{
		AppearAt: time.Duration(secs * float64(time.Second)),
		Text:     text,
		Color:    colorFromDecimal(colorField),
		Motion:   motion,
	}, true
}

// motionFromMode maps the numeric mode shared by both formats.
func motionFromMode(mode int) (MotionClass, bool) {
	switch mode {
	case 1, 2, 3:
		return ScrollLeft, true
	case 4:
		return Bottom, true
	case 5:
		return Top, true
	case 6:
		return ScrollRight, true
	default:
		return 0, false
	}
}

// sourceTagFromUser extracts "bilibili" from a user field like "[BiliBili]abc".
func sourceTagFromUser(user string) string {
	user = strings.TrimSpace(user)
	if strings.HasPrefix(user, "[") {
		if end := strings.Index(user, "]"); end > 0 {
			return strings.ToLower(user[1:end])
		}
	}
	return "dandan"
}

func colorFromDecimal(s string) string {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || v > 0xffffff {
		return DefaultColor
	}
	return colorful.Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}.Hex()
}

// NormalizeColor returns a lowercase "#rrggbb" form of hex, or DefaultColor
// when hex does not parse.
func NormalizeColor(hex string) string {
	hex = strings.TrimSpace(hex)
	if hex != "" && hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return DefaultColor
	}
	return c.Hex()
}
