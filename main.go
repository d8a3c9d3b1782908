// hp-manager controls the keyboard lighting, fans, power profile and GPU mux
// of HP Omen/Victus laptops. The same binary runs the privileged daemon
// (`hp-manager serve`) and the unprivileged client commands that talk to it.
package main

import (
	"os"

	"github.com/BitPonyLLC/hp-manager/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
