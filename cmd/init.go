package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

const sampleCatalog = `[[categories]]
name = "News"
pos = 1

[[categories]]
name = "Regional"
pos = 2

[[feeds]]
name = "Tagesschau"
url = "https://www.tagesschau.de/index~rss2.xml"
category = "News"
fav_icon = "https://www.tagesschau.de/favicon.ico"

[[feeds]]
name = "ZDF.heute"
url = "https://www.zdf.de/rss/zdf/nachrichten"
category = "News"
fav_icon = "https://www.zdf.de/nachrichten/_next/static/media/favicon.016678b8.ico"

[[feeds]]
name = "sz.de"
url = "https://rss.sueddeutsche.de/rss/Topthemen"
category = "News"
fav_icon = "https://www.sueddeutsche.de/szde-assets/img/favicon-32x32.png"

[[feeds]]
name = "T-Online.de"
url = "https://www.t-online.de/feed.rss"
category = "News"
fav_icon = "https://www.t-online.de/favicon.ico"

[[feeds]]
name = "General Anzeiger Bonn"
url = "https://ga.de/feed.rss"
category = "Regional"
fav_icon = "https://ga.de/assets/skins/general-anzeiger-bonn/favicon.ico"
`

const emptyCatalog = `[[categories]]
name = "News"
pos = 1

# Add your feeds here:
#
# [[feeds]]
# name = "Example"
# url = "https://example.com/feed.xml"
# category = "News"
# fav_icon = "https://example.com/favicon.ico"
`

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a starter feed catalog",
		Description: `Interactively creates a feed catalog configuration file.

Offers a sample catalog of public news feeds to get started with, or an
empty catalog to fill in yourself. Refuses to overwrite an existing file.`,
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: func(ctx *cli.Context) error {
			path, err := prompt.New().Ask("Config file path:").Input(ctx.String("config"))
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			choice, err := prompt.New().Ask("Catalog to start from:").
				Choose([]string{"sample catalog (German news feeds)", "empty catalog"})
			if err != nil {
				return err
			}

			catalog := sampleCatalog
			if choice == "empty catalog" {
				catalog = emptyCatalog
			}

			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}

			if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
				return err
			}

			fmt.Println("Wrote", path)
			return nil
		},
	}
}
