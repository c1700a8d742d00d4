// Package config loads storefront configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a dotenv file, ".env" by default (variables already set in the
//     process are kept)
//  3. a YAML file given with --config
//  4. STOREFRONT_* environment variables
//  5. command line flags, applied by the CLI
//
// Example file:
//
//	data_dir: /var/lib/storefront
//	log:
//	  level: info
//	  json: true
//	auth:
//	  secret_key: replace-me
//	  token_ttl: 30m
//	  password_min_length: 8
//	orders:
//	  strict_transitions: false
//	jobs:
//	  snapshot_schedule: "0 3 * * *"
//	  snapshot_dir: /var/backups/storefront
//	bootstrap:
//	  admin_password: initial-secret1
//	  products:
//	    - name: Notebook
//	      price: "4.50"
//	      stock: 100
//	      category: stationery
package config
