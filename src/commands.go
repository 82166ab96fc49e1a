package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mixtape/src/library"
)

var addFlags struct {
	file, link, url, name string
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a local file, a video link or an MP3 link to the playlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := rawTrackFromFlags(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, store *library.Store) error {
			pl, err := store.Load(ctx)
			if err != nil {
				return err
			}
			pl, ok, err := store.Add(ctx, pl, raw)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %q", library.ErrInvalidTrack, raw.Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", pl[len(pl)-1])
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&addFlags.file, "file", "", "Audio file to embed in the playlist")
	addCmd.Flags().StringVar(&addFlags.link, "link", "", "Link to a video")
	addCmd.Flags().StringVar(&addFlags.url, "url", "", "Link to an MP3 file")
	addCmd.Flags().StringVar(&addFlags.name, "name", "", "Display name of the track")
	addCmd.MarkFlagsMutuallyExclusive("file", "link", "url")
	addCmd.MarkFlagsOneRequired("file", "link", "url")
}

func rawTrackFromFlags(in io.Reader, out io.Writer) (library.RawTrack, error) {
	switch {
	case addFlags.link != "":
		return library.VideoTrack(addFlags.link, addFlags.name)
	case addFlags.url != "":
		return library.RemoteTrack(addFlags.url, addFlags.name)
	}

	raw, err := library.ReadLocalFile(addFlags.file)
	if err != nil {
		return library.RawTrack{}, err
	}
	guess := raw.Name
	if addFlags.name != "" {
		guess = addFlags.name
	}
	raw.Name = library.ResolveName(guess, "Name for this track", linePrompter(in, out))
	return raw, nil
}

// linePrompter asks questions on out and reads single line answers from in.
func linePrompter(in io.Reader, out io.Writer) library.Prompter {
	scanner := bufio.NewScanner(in)
	return library.PrompterFunc(func(question, suggestion string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", question, suggestion)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	})
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the playlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *library.Store) error {
			pl, err := store.Load(ctx)
			if err != nil {
				return err
			}
			printPlaylist(cmd.OutOrStdout(), pl)
			return nil
		})
	},
}

func printPlaylist(w io.Writer, pl library.Playlist) {
	if len(pl) == 0 {
		fmt.Fprintln(w, "The playlist is empty")
		return
	}
	for i, track := range pl {
		fmt.Fprintf(w, "%3d  %-8s %s\n", i, track.Label(), track.Name)
	}
}

var rmCmd = &cobra.Command{
	Use:   "rm INDEX",
	Short: "Remove the track at INDEX from the playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid index: %w", err)
		}
		return withStore(cmd, func(ctx context.Context, store *library.Store) error {
			pl, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if _, ok, err := store.RemoveAt(ctx, pl, index); err != nil {
				return err
			} else if !ok {
				return errors.New("index out of range")
			}
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracks from the playlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *library.Store) error {
			return store.Clear(ctx)
		})
	},
}

func withStore(cmd *cobra.Command, fn func(context.Context, *library.Store) error) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, st, err := openStore(conf)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), store)
}
