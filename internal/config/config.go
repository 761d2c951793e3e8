package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	StorePostgres = "postgres"
	StoreSheets   = "sheets"
	StoreRemote   = "remote"
	StoreMemory   = "memory"
)

type Application struct {
	Database Database `koanf:"db"`
	Store    Store    `koanf:"store"`
	Sheets   Sheets   `koanf:"sheets"`
	Remote   Remote   `koanf:"remote"`
	Catalog  Catalog  `koanf:"catalog"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// Store selects the table backend and names the two tables an allocation plan is written to.
type Store struct {
	Backend     string `koanf:"backend"`
	HeaderTable string `koanf:"headertable"`
	DetailTable string `koanf:"detailtable"`
}

type Sheets struct {
	SpreadsheetId   string `koanf:"spreadsheetid"`
	CredentialsFile string `koanf:"credentialsfile"`
}

type Remote struct {
	BaseURL      string   `koanf:"baseurl"`
	TokenURL     string   `koanf:"tokenurl"`
	ClientId     string   `koanf:"clientid"`
	ClientSecret string   `koanf:"clientsecret"`
	Scopes       []string `koanf:"scopes"`
}

// Catalog lists the labels of each category taxonomy a target can be split over.
type Catalog struct {
	Lines     []string `koanf:"lines"`
	Employees []string `koanf:"employees"`
	Sources   []string `koanf:"sources"`
}

func Defaults() Application {
	return Application{
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "salesplan",
			Pass:   "",
			Name:   "salesplan",
			Schema: "salesplan",
		},
		Store: Store{
			Backend:     StorePostgres,
			HeaderTable: "sales_target",
			DetailTable: "sales_target_detail",
		},
		Catalog: Catalog{
			Lines: []string{
				"Software", "Hardware", "Consulting", "Maintenance",
				"Training", "Cloud services", "Integration", "Other",
			},
			Employees: []string{"Employee 1", "Employee 2", "Employee 3", "Employee 4", "Employee 5"},
			Sources: []string{
				"Referral", "Website", "Exhibition", "Cold call",
				"Partner", "Advertising", "Other",
			},
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "SALESPLAN_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "SALESPLAN_")), "_", ".")
			// list values are comma separated, e.g. SALESPLAN_CATALOG_SOURCES="Web,Referral"
			if strings.HasPrefix(k, "catalog.") || k == "remote.scopes" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
