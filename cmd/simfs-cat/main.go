package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-simfs"
)

type rootParameters struct {
	ImageFilepath string `short:"f" long:"image-filepath" description:"File-path of the simulated disk image" required:"true"`
	SectorSize    uint32 `short:"s" long:"sector-size" description:"Sector width in bytes" default:"128"`
	SectorCount   uint32 `short:"n" long:"sector-count" description:"Total number of sectors" default:"128"`
	NameLength    int    `short:"l" long:"name-length" description:"Maximum file/directory name length" default:"9"`
	DirCapacity   int    `short:"d" long:"dir-capacity" description:"Maximum entries per directory" default:"64"`
	Path          string `short:"p" long:"path" description:"File path to read" required:"true"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	disk, err := simfs.OpenFileDisk(rootArguments.ImageFilepath, rootArguments.SectorSize, rootArguments.SectorCount)
	log.PanicIf(err)

	defer disk.Close()

	g := simfs.Geometry{
		SectorSize:  rootArguments.SectorSize,
		SectorCount: rootArguments.SectorCount,
		NameLength:  rootArguments.NameLength,
		DirCapacity: rootArguments.DirCapacity,
	}

	fs, err := simfs.Mount(disk, g)
	log.PanicIf(err)

	id, err := fs.Open(rootArguments.Path)
	log.PanicIf(err)

	defer fs.Close(id)

	buf := make([]byte, g.SectorSize)

	for {
		n, err := fs.Read(id, buf, len(buf))
		log.PanicIf(err)

		if n == 0 {
			break
		}

		_, err = os.Stdout.Write(buf[:n])
		log.PanicIf(err)
	}

	fmt.Fprintln(os.Stderr)
}
