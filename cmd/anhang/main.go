package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tdewolff/argp"

	"github.com/anhang-io/anhang"
	"github.com/anhang-io/anhang/attachment"
	"github.com/anhang-io/anhang/format"
	"github.com/anhang-io/anhang/invoicexml"
	"github.com/anhang-io/anhang/reader"
)

type List struct {
	Long  bool   `short:"l" desc:"Show description, relationship and subtype per attachment"`
	Input string `index:"0" desc:"Input PDF file"`
}

type Dump struct {
	Name   string `short:"n" default:"" desc:"Attachment name to dump (default: invoice XML)"`
	Output string `short:"o" default:"" desc:"Output file (default: stdout)"`
	Input  string `index:"0" desc:"Input PDF file"`
}

type JSON struct {
	Name   string `short:"n" default:"" desc:"Attachment name to parse (default: invoice XML)"`
	Indent bool   `short:"i" desc:"Indent the JSON output"`
	Input  string `index:"0" desc:"Input PDF file"`
}

func main() {
	root := argp.NewCmd(&List{}, "Extract ZUGFeRD/Factur-X/XRechnung invoice attachments from PDF files")
	root.AddCmd(&Dump{}, "dump", "Write an attachment's content to stdout or a file")
	root.AddCmd(&JSON{}, "json", "Parse the invoice XML attachment into JSON")
	root.Parse()
	root.PrintHelp()
}

func (cmd *List) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}

	files, err := openAndExtract(cmd.Input)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("no embedded files in", filepath.Base(cmd.Input))
		return nil
	}

	for _, f := range files {
		if cmd.Long {
			fmt.Printf("%s\t%d bytes", f.Name, len(f.Data))
			if f.Subtype != "" {
				fmt.Printf("\t%s", f.Subtype)
			}
			if f.Relationship != "" {
				fmt.Printf("\t%s", f.Relationship)
			}
			if f.Description != "" {
				fmt.Printf("\t%s", f.Description)
			}
			fmt.Println()
		} else {
			fmt.Println(f.Name)
		}
	}
	return nil
}

func (cmd *Dump) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}

	file, err := selectAttachment(cmd.Input, cmd.Name)
	if err != nil {
		return err
	}

	if cmd.Output == "" {
		_, err = os.Stdout.Write(file.Data)
		return err
	}
	return os.WriteFile(cmd.Output, file.Data, 0o644)
}

func (cmd *JSON) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}

	file, err := selectAttachment(cmd.Input, cmd.Name)
	if err != nil {
		return err
	}

	m, err := invoicexml.Parse(file.Data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if cmd.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(m)
}

func openAndExtract(path string) ([]reader.EmbeddedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if f := format.DetectFromMagic(data); f != format.PDF && f != format.Unknown {
		return nil, fmt.Errorf("%s is %s, not PDF", filepath.Base(path), f)
	}
	return anhang.Extract(data)
}

func selectAttachment(path, name string) (reader.EmbeddedFile, error) {
	files, err := openAndExtract(path)
	if err != nil {
		return reader.EmbeddedFile{}, err
	}

	var opts []attachment.Option
	if name != "" {
		opts = append(opts, attachment.WithName(name))
	}
	return attachment.Select(files, opts...)
}
