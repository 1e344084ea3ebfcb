package prepare

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagan/zip"
	"github.com/spf13/cobra"

	"github.com/awender/fableforge/cmd/train"
	"github.com/awender/fableforge/config"
	"github.com/awender/fableforge/features/registry"
	"github.com/awender/fableforge/util/helper"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Pack training images into a zip for the LoRA trainer",
	Long: `Pack training images into a zip for the LoRA trainer.

Collects the image files from <training_dir>/<character_key>/ and writes
<training_dir>/<character_key>.zip. Files are stored flat (basenames only),
which is the layout the hosted trainer expects.

Run "train synth" first (or put your own images in the folder), review the
images, then prepare and "train start".`,
	RunE: doPrepare,
	Args: cobra.ExactArgs(0),
}

var flagCharacter string

func init() {
	prepareCmd.Flags().StringVarP(&flagCharacter, "character", "c", "",
		"Character to prepare: 1, 2, or a fantasy name. Default: both")
	train.TrainCmd.AddCommand(prepareCmd)
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func doPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := registry.Load(cfg.CharactersFile, cfg.LoraConfigFile)
	if err != nil {
		return err
	}
	slots, err := train.SelectSlots(reg, flagCharacter)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		key := train.SlotKey(slot)
		dir := filepath.Join(cfg.TrainingDir, key)
		zipPath := filepath.Join(cfg.TrainingDir, key+".zip")
		count, err := createTrainingZip(dir, zipPath)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", key, err)
		}
		fmt.Printf("Packed %d image(s) from %s into %s\n", count, dir, zipPath)
	}
	return nil
}

// createTrainingZip writes the image files of dir into a flat zip. Returns
// the number of files packed.
func createTrainingZip(dir string, zipPath string) (count int, err error) {
	var files []string
	for _, name := range helper.ParseGlobFilenames(filepath.ToSlash(dir) + "/*") {
		if isImageFile(name) {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no training images in %q", dir)
	}

	fout, err := os.OpenFile(zipPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}
	defer fout.Close()
	zipWriter := zip.NewWriter(fout)
	for _, file := range files {
		if err := addZipFile(zipWriter, file); err != nil {
			return count, fmt.Errorf("failed to pack %q: %w", file, err)
		}
		count++
	}
	return count, zipWriter.Close()
}

func addZipFile(zipWriter *zip.Writer, file string) error {
	fin, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fin.Close()
	// basename only: the trainer wants a flat archive
	w, err := zipWriter.Create(filepath.Base(file))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, fin)
	return err
}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, imageExt := range imageExtensions {
		if ext == imageExt {
			return true
		}
	}
	return false
}
