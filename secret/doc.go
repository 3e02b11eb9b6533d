// Package secret resolves secret references in configuration values.
//
// Provider endpoints and API keys are never written into configuration
// files. Values may instead use:
//   - ${VAR}: strict environment expansion; a missing variable is an error
//   - secretref:<provider>:<ref>: resolved by a registered Provider, either
//     as the whole value or inline ("Bearer secretref:env:METEO_TOKEN")
//
// Two providers are built in: "env" reads environment variables and "file"
// reads mounted secret files such as /run/secrets/<ref>.
package secret
