// ABOUTME: OPML parsing and writing for feed subscription import/export
// ABOUTME: Folders map to groups; supports round-trip XML serialization

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Document represents an OPML document with a title and hierarchical outlines
type Document struct {
	Title    string
	Outlines []Outline
	feedURLs map[string]bool // URL index for O(1) lookups
}

// Outline represents a node in the OPML tree structure.
// Can be either a folder (with Children) or a feed (with XMLURL).
type Outline struct {
	Text     string
	Title    string
	Type     string
	XMLURL   string
	Children []Outline
}

// Feed is a flattened view of a single subscription with its folder name.
type Feed struct {
	URL    string
	Title  string
	Folder string
}

// XML structs for parsing and writing OPML files
type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// NewDocument creates a new empty OPML document with the given title
func NewDocument(title string) *Document {
	return &Document{
		Title:    title,
		Outlines: []Outline{},
		feedURLs: make(map[string]bool),
	}
}

// Parse reads OPML data from an io.Reader and returns a Document
func Parse(r io.Reader) (*Document, error) {
	var opml opmlXML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&opml); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	doc := &Document{
		Title:    opml.Head.Title,
		Outlines: make([]Outline, len(opml.Body.Outlines)),
	}

	for i, outline := range opml.Body.Outlines {
		doc.Outlines[i] = convertOutlineFromXML(outline)
	}

	doc.rebuildURLIndex()
	return doc, nil
}

// ParseFile reads OPML data from a file and returns a Document
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

func (d *Document) rebuildURLIndex() {
	d.feedURLs = make(map[string]bool)
	for _, feed := range d.AllFeeds() {
		d.feedURLs[feed.URL] = true
	}
}

func (d *Document) ensureURLIndex() {
	if d.feedURLs == nil {
		d.rebuildURLIndex()
	}
}

// AllFeeds returns a flat list of all feeds with their folder information.
func (d *Document) AllFeeds() []Feed {
	feeds := make([]Feed, 0, len(d.Outlines))
	for _, outline := range d.Outlines {
		feeds = append(feeds, collectFeeds(outline, "")...)
	}
	return feeds
}

// AddFolder adds a folder to the document (idempotent)
func (d *Document) AddFolder(name string) {
	for _, outline := range d.Outlines {
		if outline.Text == name && outline.XMLURL == "" {
			return
		}
	}

	d.Outlines = append(d.Outlines, Outline{
		Text:     name,
		Children: []Outline{},
	})
}

// AddFeed adds a feed to the document, optionally in a folder.
// Creates the folder if it doesn't exist.
// Returns an error if a feed with the same URL already exists.
func (d *Document) AddFeed(url, title, folder string) error {
	d.ensureURLIndex()
	if d.feedURLs[url] {
		return fmt.Errorf("feed with URL %s already exists", url)
	}

	feed := Outline{
		Text:   title,
		Title:  title,
		Type:   "rss",
		XMLURL: url,
	}

	if folder == "" {
		d.Outlines = append(d.Outlines, feed)
	} else {
		folderIndex := -1
		for i, outline := range d.Outlines {
			if outline.Text == folder && outline.XMLURL == "" {
				folderIndex = i
				break
			}
		}

		if folderIndex == -1 {
			d.Outlines = append(d.Outlines, Outline{
				Text:     folder,
				Children: []Outline{feed},
			})
		} else {
			d.Outlines[folderIndex].Children = append(d.Outlines[folderIndex].Children, feed)
		}
	}

	d.feedURLs[url] = true
	return nil
}

// Write writes the OPML document to an io.Writer
func (d *Document) Write(w io.Writer) error {
	opml := opmlXML{
		Version: "2.0",
		Head: headXML{
			Title: d.Title,
		},
		Body: bodyXML{
			Outlines: make([]outlineXML, len(d.Outlines)),
		},
	}

	for i, outline := range d.Outlines {
		opml.Body.Outlines[i] = convertOutlineToXML(outline)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(opml); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	return nil
}

// WriteFile writes the OPML document to a file
func (d *Document) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return d.Write(file)
}

// Helper functions

func convertOutlineFromXML(x outlineXML) Outline {
	o := Outline{
		Text:     x.Text,
		Title:    x.Title,
		Type:     x.Type,
		XMLURL:   x.XMLURL,
		Children: make([]Outline, len(x.Children)),
	}

	for i, child := range x.Children {
		o.Children[i] = convertOutlineFromXML(child)
	}

	return o
}

func convertOutlineToXML(o Outline) outlineXML {
	x := outlineXML{
		Text:     o.Text,
		Title:    o.Title,
		Type:     o.Type,
		XMLURL:   o.XMLURL,
		Children: make([]outlineXML, len(o.Children)),
	}

	for i, child := range o.Children {
		x.Children[i] = convertOutlineToXML(child)
	}

	return x
}

func collectFeeds(outline Outline, folder string) []Feed {
	var feeds []Feed

	if outline.XMLURL != "" {
		feeds = append(feeds, Feed{
			URL:    outline.XMLURL,
			Title:  getOutlineTitle(outline),
			Folder: folder,
		})
	}

	childFolder := folder
	if outline.XMLURL == "" && len(outline.Children) > 0 {
		childFolder = outline.Text
	}

	for _, child := range outline.Children {
		feeds = append(feeds, collectFeeds(child, childFolder)...)
	}

	return feeds
}

func getOutlineTitle(outline Outline) string {
	if outline.Title != "" {
		return outline.Title
	}
	return outline.Text
}
