// SPDX-License-Identifier: Apache-2.0
package vapid

import (
	"fmt"

	"git.rob.mx/nidito/chinampa/pkg/command"
	"github.com/tripline/pushgate/internal/webpush"
)

var GenerateCommand = &command.Command{
	Path:        []string{"vapid", "generate"},
	Summary:     "Generates a VAPID key pair",
	Description: "Prints a fresh P-256 pair, base64url encoded. Keep the private key out of version control.",
	Action: func(cmd *command.Command) error {
		keys, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return err
		}

		fmt.Printf("public: %s\n", keys.Public)
		fmt.Printf("private: %s\n", keys.Private)
		return nil
	},
}
