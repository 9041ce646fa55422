package config

// This values doesnt have a default value because depend on the
// environment / deployment
const DefaultMandatoryVars = `
# Admin is the account allowed to rotate the allow-list root, change the
# base price and withdraw the funds collected by the drop
Admin = "0x0000000000000000000000000000000000000000"

# DropCustody is the account that receives claim payments and holds them
# until the admin withdraws
DropCustody = "0x0000000000000000000000000000000000000000"

# MarketCustody is the escrow account that holds items while they are listed
MarketCustody = "0x0000000000000000000000000000000000000000"

# PaymentToken is the address of the asset used to pay claims and purchases
PaymentToken = "0x0000000000000000000000000000000000000000"
`

// This doesn't belong to config, but are the vars used
// to avoid repetition in config-files
const DefaultVars = `
PathRWData = "/tmp/merkledrop"

`

// DefaultValues is the default configuration
const DefaultValues = `
# This is the default configuration for the merkledrop node

# StoragePath is the path of the sqlite db shared by all the services
StoragePath = "{{PathRWData}}/merkledrop.sqlite"

# Log configuration
[Log]
  # Environment is the environment where the node is running
  Environment = "development" # "production" or "development"
  # Level is the log level
  Level = "info"
  # Outputs are the outputs where the logs will be written
  Outputs = ["stderr"]

# Common configuration
[Common]
  # NetworkID is the network id reported by the node
  NetworkID = 1

[RPC]
  # Host defines the network adapter that will be used to serve the HTTP requests
  Host = "0.0.0.0"
  # Port defines the port to serve the endpoints via HTTP
  Port = 5576
  # ReadTimeout is the HTTP server read timeout
  # check net/http.server.ReadTimeout and net/http.server.ReadHeaderTimeout
  ReadTimeout = "2s"
  # WriteTimeout is the HTTP server write timeout
  # check net/http.server.WriteTimeout
  WriteTimeout = "2s"
  # MaxRequestsPerIPAndSecond defines how much requests a single IP can
  # send within a single second
  MaxRequestsPerIPAndSecond = 10

# Payment asset ledger configuration
[Fungible]
  # Token is the address of the asset used for payments
  Token = "{{PaymentToken}}"

# Minted item ledger configuration
[Collectible]
  # BaseURI is the prefix used to derive metadata for items minted
  # without an explicit hint
  BaseURI = "drop/"

# Claim ledger configuration
[Drop]
  # Admin is the account allowed to rotate the root, reprice and withdraw
  Admin = "{{Admin}}"
  # Custody is the account that receives claim payments
  Custody = "{{DropCustody}}"
  # MaxSupply is the maximum number of items the drop will ever issue
  MaxSupply = 1000
  # BasePrice is the full claim price, in base units of the payment asset.
  # Allow-listed claimers pay half
  BasePrice = 100

# Escrow marketplace configuration
[Market]
  # Custody is the escrow account that holds items while they are listed
  Custody = "{{MarketCustody}}"
`
