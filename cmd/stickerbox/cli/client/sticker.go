package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwantia/stickerbox/internal/agent"
	"github.com/mwantia/stickerbox/internal/library"
	"github.com/spf13/cobra"
)

func NewStickerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sticker",
		Aliases: []string{"s"},
		Short:   "Manage the sticker library",
		Long:    "Import, list, search, tag, edit, export and delete stickers in the local library.",
	}

	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewPhotosCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewSearchCommand())
	cmd.AddCommand(NewTagsCommand())
	cmd.AddCommand(NewRenameCommand())
	cmd.AddCommand(NewTagCommand())
	cmd.AddCommand(NewPinCommand())
	cmd.AddCommand(NewFavoriteCommand())
	cmd.AddCommand(NewRemoveCommand())
	cmd.AddCommand(NewExportCommand())
	cmd.AddCommand(NewExportArchiveCommand())
	cmd.AddCommand(NewEditCommand())
	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewInfoCommand())
	cmd.AddCommand(NewWipeCommand())

	return cmd
}

func NewImportCommand() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import images or zip archives",
		Long:  "Import image files and zip archives into the library. Filenames already in use get a timestamp suffix.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				result, err := lib.ImportDocuments(ctx, args)
				if result != nil && len(tags) > 0 {
					for _, s := range result.Stickers {
						if _, tagErr := lib.AddTags(ctx, s.ID, tags); tagErr != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "Unable to tag %s: %v\n", s.ID, tagErr)
						}
					}
				}
				if result != nil {
					printImportResult(cmd.OutOrStdout(), result)
				}
				return err
			})
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags added to every imported sticker")

	return cmd
}

func NewPhotosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos <file>...",
		Short: "Import photos under generated names",
		Long:  "Import images as photo_<unix>_<n>.jpg, the way photos picked from a photo library are stored.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make([]library.Source, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read '%s': %w", path, err)
				}
				sources = append(sources, library.Source{Data: data})
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				result, err := lib.ImportPhotos(ctx, sources)
				if result != nil {
					printImportResult(cmd.OutOrStdout(), result)
				}
				return err
			})
		},
	}

	return cmd
}

func NewListCommand() *cobra.Command {
	var format listFormat

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stickers",
		Long:  "List all stickers, pinned first and newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				lib := a.Library()
				stickers, err := lib.List(ctx)
				if err != nil {
					return err
				}
				return printStickers(cmd.OutOrStdout(), stickers, format)
			})
		},
	}

	cmd.Flags().BoolVarP(&format.human, "human", "H", false, "Enable human-readable format")
	cmd.Flags().BoolVarP(&format.long, "long", "l", false, "Display long format")

	return cmd
}

func NewSearchCommand() *cobra.Command {
	var format listFormat
	var tagsOnly bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stickers by tag or filename",
		Long:  "Search stickers whose tags or filename contain the query. Matching is case-sensitive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				stickers, err := lib.Search(ctx, args[0], tagsOnly)
				if err != nil {
					return err
				}
				return printStickers(cmd.OutOrStdout(), stickers, format)
			})
		},
	}

	cmd.Flags().BoolVar(&tagsOnly, "tags-only", false, "Match tag names only")
	cmd.Flags().BoolVarP(&format.human, "human", "H", false, "Enable human-readable format")
	cmd.Flags().BoolVarP(&format.long, "long", "l", false, "Display long format")

	return cmd
}

func NewTagsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tags [prefix]",
		Short: "List tags by usage",
		Long:  "List all tags ordered by usage, or suggest tags containing the given text.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					names, err := lib.SuggestTags(ctx, args[0], limit)
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(out, name)
					}
					return nil
				}

				tags, err := lib.Tags(ctx)
				if err != nil {
					return err
				}
				for _, tag := range tags {
					fmt.Fprintf(out, "%-24s %d\n", tag.Name, tag.UsageCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of suggestions")

	return cmd
}

func NewRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <filename>",
		Short: "Rename a sticker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				sticker, err := lib.Rename(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}
}

func NewTagCommand() *cobra.Command {
	var add, remove, set []string
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "tag <id>",
		Short: "Change the tags of a sticker",
		Long:  "Add, remove or replace the tags of a sticker. Tags are trimmed and deduplicated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(add)+len(remove)+len(set) == 0 && !clearAll {
				return fmt.Errorf("one of --add, --remove, --set or --clear is required")
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				id := args[0]

				var err error
				switch {
				case clearAll:
					_, err = lib.SetTags(ctx, id, nil)
				case len(set) > 0:
					_, err = lib.SetTags(ctx, id, set)
				}
				if err != nil {
					return err
				}

				if len(add) > 0 {
					if _, err := lib.AddTags(ctx, id, add); err != nil {
						return err
					}
				}
				if len(remove) > 0 {
					if _, err := lib.RemoveTags(ctx, id, remove); err != nil {
						return err
					}
				}

				sticker, err := lib.Get(ctx, id)
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&add, "add", "a", nil, "tags to add")
	cmd.Flags().StringSliceVarP(&remove, "remove", "r", nil, "tags to remove")
	cmd.Flags().StringSliceVarP(&set, "set", "s", nil, "replace all tags")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove all tags")

	return cmd
}

func NewPinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle whether a sticker is pinned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				sticker, err := lib.TogglePin(ctx, args[0])
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}
}

func NewFavoriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <id>",
		Aliases: []string{"fav"},
		Short:   "Toggle whether a sticker is a favorite",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				sticker, err := lib.ToggleFavorite(ctx, args[0])
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}
}

func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete stickers",
		Long:  "Delete stickers with their files. Remaining ids are still deleted when one fails.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				return lib.DeleteMany(ctx, args)
			})
		},
	}
}

func NewExportCommand() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a sticker as jpg, png or gif",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				path, err := lib.Export(ctx, args[0], format)
				if err != nil {
					return err
				}
				if output != "" {
					if path, err = moveTo(path, output); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "jpg", "export format (jpg, png, gif)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory to move the export into")

	return cmd
}

func NewExportArchiveCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-zip [id]...",
		Short: "Export stickers as a zip archive",
		Long:  "Bundle the given stickers, or the whole library when no id is given, into one zip archive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				path, err := lib.ExportArchive(ctx, args)
				if err != nil {
					return err
				}
				if output != "" {
					if path, err = moveTo(path, output); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "directory to move the archive into")

	return cmd
}

func NewEditCommand() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "edit <id> <file>",
		Short: "Store an edited version of a sticker",
		Long:  "Store the image in file as a new <name>_edited_<unix>.jpg sticker, or replace the sticker's image in place with --replace.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read '%s': %w", args[1], err)
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				edit := lib.SaveEdited
				if replace {
					edit = lib.ReplaceImage
				}

				sticker, err := edit(ctx, args[0], data)
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace the image of the existing sticker")

	return cmd
}

func NewGenerateCommand() *cobra.Command {
	var base string
	var tags []string

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a sticker with the configured AI endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				sticker, err := lib.Generate(ctx, args[0], base, tags)
				if err != nil {
					return err
				}
				printSticker(cmd.OutOrStdout(), sticker)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "id of a sticker to use as the base image")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags for the generated sticker")

	return cmd
}

func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
				lib := a.Library()
				stickers, err := lib.List(ctx)
				if err != nil {
					return err
				}
				tags, err := lib.Tags(ctx)
				if err != nil {
					return err
				}
				info, err := lib.StorageInfo()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Stickers: %d\n", len(stickers))
				fmt.Fprintf(out, "Tags:     %d\n", len(tags))
				fmt.Fprintf(out, "Files:    %d\n", info.FileCount)
				fmt.Fprintf(out, "Size:     %s\n", info.FormattedSize())
				if version, err := a.SchemaVersion(ctx); err == nil {
					fmt.Fprintf(out, "Schema:   v%d\n", version)
				}
				return nil
			})
		},
	}
}

func NewWipeCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every sticker",
		Long:  "Delete every sticker file and record. AI settings are kept. Needs --confirm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to wipe the library without --confirm")
			}
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				return lib.WipeAll(ctx)
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the deletion of the whole library")

	return cmd
}

// moveTo moves path into dir, copying when a rename across devices fails.
func moveTo(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	os.Remove(path)
	return dst, nil
}
