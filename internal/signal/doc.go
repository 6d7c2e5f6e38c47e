// Package signal drives Signal Messenger through the signal-cli command.
//
// The client sends direct and group messages and polls for incoming ones
// using signal-cli's JSON output. signal-cli must be installed and the
// account registered with it beforehand:
//
//	signal-cli -u +15551234567 register
//	signal-cli -u +15551234567 verify CODE
//
// Credentials live in the signal-cli data directory
// (typically ~/.local/share/signal-cli/).
//
// Example:
//
//	client, err := signal.NewClient("+15551234567")
//	if err != nil {
//	    return err
//	}
//	msgs, err := client.Receive(ctx, 5*time.Second)
//	for _, m := range msgs {
//	    _ = client.Send(ctx, m.ReplyTarget(), "pong")
//	}
package signal
