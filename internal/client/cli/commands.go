package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	json "github.com/goccy/go-json"

	"github.com/thelarryrutledge/nvlp-go/internal/client/nvlp"
)

func (a *App) Login(ctx context.Context) error {

	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.client.SignIn(ctx, email, password); err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	a.userEmail = email
	log.Printf("Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.client.SignOut(ctx); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	a.userEmail = ""
	log.Printf("Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	cred := a.client.Session()
	if cred == nil {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("User: %s (token expires %s)\n", cred.UserID, cred.ExpiresAt.Format("15:04:05"))
	return nil
}

func (a *App) Get(ctx context.Context, table string) error {
	var rows json.RawMessage
	err := a.client.From(table).Get(ctx, &rows)
	if err != nil {
		var qe *nvlp.QueuedError
		if errors.As(err, &qe) {
			log.Printf("Offline: request queued for replay (id %s)", qe.ID)
			return nil
		}
		log.Printf("error: %v", err)
		return err
	}
	fmt.Println(string(rows))
	return nil
}

func (a *App) Invoke(ctx context.Context, name string) error {

	input, err := GetSimpleText(a.reader, "Enter JSON payload (empty for none)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	var payload any
	if input != "" {
		if err := json.Unmarshal([]byte(input), &payload); err != nil {
			log.Printf("invalid payload: %v", err)
			return err
		}
	}

	var out json.RawMessage
	if err := a.client.Invoke(ctx, name, payload, &out); err != nil {
		var qe *nvlp.QueuedError
		if errors.As(err, &qe) {
			log.Printf("Offline: request queued for replay (id %s)", qe.ID)
			return nil
		}
		log.Printf("error: %v", err)
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	replayed, err := a.client.ProcessQueue(ctx)
	if err != nil {
		log.Printf("Replayed %d, stopped: %v", replayed, err)
		return err
	}
	log.Printf("Replayed %d queued request(s)", replayed)
	return nil
}

func (a *App) Queue(ctx context.Context) error {
	size, err := a.client.QueueSize(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Pending offline requests: %d\n", size)
	return nil
}

func (a *App) ClearQueue(ctx context.Context) error {
	if err := a.client.ClearQueue(ctx); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	log.Printf("Queue cleared")
	return nil
}

func (a *App) Device(ctx context.Context, rotate bool) error {
	if !rotate {
		fmt.Println("Device ID:", a.client.DeviceID())
		return nil
	}
	id, err := a.client.RotateDeviceID()
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Println("New device ID:", id)
	return nil
}
