package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// Staging script environment.
const (
	envSubject        = "CERT_SUBJECT"
	envValidityMonths = "CERT_VALIDITY_MONTHS"
	envPolicy         = "CERT_POLICY"
	envAccount        = "STORAGE_ACCOUNT"
	envContainer      = "CONTAINER"
)

// stagingScript issues the certificate in the vault and drops the public
// half into the staging container. It runs as the managed identity in a
// deployment script whose working share is mounted with the account key.
const stagingScript = `set -euo pipefail
echo "$CERT_POLICY" > policy.json
if ! az keyvault certificate show --vault-name "$VAULT_NAME" --name "$CERT_NAME" --only-show-errors >/dev/null 2>&1; then
  az keyvault certificate create --vault-name "$VAULT_NAME" --name "$CERT_NAME" --policy @policy.json --only-show-errors >/dev/null
fi
az keyvault certificate download --vault-name "$VAULT_NAME" --name "$CERT_NAME" --file cert.pem --encoding PEM
az storage container create --account-name "$STORAGE_ACCOUNT" --name "$CONTAINER" --auth-mode login --only-show-errors >/dev/null
az storage blob upload --account-name "$STORAGE_ACCOUNT" --container-name "$CONTAINER" --name "$CERT_NAME.pem" --file cert.pem --auth-mode login --overwrite --only-show-errors >/dev/null
jq -n --arg name "$CERT_NAME" '{certificate: $name}' > "$AZ_SCRIPTS_OUTPUT_PATH"
`

// Certificate returns the step that stages the cluster certificate. The
// strategy follows the access mode: Keyless runs create the certificate
// natively and depend on the role assignments, SharedKey runs use the
// staging script.
func Certificate(mode resource.AccessMode) provisioning.Step {
	deps := []provisioning.State{provisioning.StateStorageReady}
	if mode == resource.AccessKeyless {
		deps = append(deps, provisioning.StateRoleAssigned)
	}
	return provisioning.Step{
		State:       provisioning.StateCertificateStaged,
		Description: "cluster certificate",
		DependsOn:   deps,
		Run:         stageCertificate,
	}
}

func stageCertificate(rc *provisioning.RunContext) provisioning.Outcome {
	staging := rc.Outputs.Staging
	if staging == nil || rc.Outputs.KeyVault == nil {
		return provisioning.Failed(errors.New("staging artifact has not been provisioned"))
	}

	d := CertificateDescriptor(rc)
	if rc.Outputs.BlobEndpoint == "" {
		warning := fmt.Sprintf("storage account %s does not support %s access", staging.StorageAccount.Name, staging.AccessMode)
		rc.Skip(d, warning)
		return provisioning.Skipped(warning)
	}

	var (
		res *resource.Resource
		err error
	)
	switch staging.CertificateStrategy() {
	case resource.StrategyNative:
		res, err = stageNative(rc, *staging, d)
	default:
		res, err = stageInline(rc, *staging, d)
	}
	if err != nil {
		return provisioning.Failed(err)
	}

	ref := d.Ref()
	rc.Outputs.Certificate = &ref
	rc.Outputs.CertificateID = res.ID
	return provisioning.Succeeded()
}

// AdoptCertificate records a certificate that was created outside the
// staging step as that step's result, so the run can resume without
// staging it again.
func AdoptCertificate(rc *provisioning.RunContext, id string, created bool) error {
	if rc.Outputs.KeyVault == nil {
		return errors.New("key vault has not been provisioned")
	}
	if id == "" {
		return errors.New("certificate has no resource ID")
	}
	d := CertificateDescriptor(rc)
	result := resource.NewPendingResult(string(provisioning.StateCertificateStaged), d, rc.Now())
	_ = result.Succeed(id, created, 1, rc.Now())
	rc.Record(result)

	ref := d.Ref()
	rc.Outputs.Certificate = &ref
	rc.Outputs.CertificateID = id
	rc.Outputs.IDs[d.Key()] = id
	return nil
}

// CertificateDescriptor describes the cluster certificate of the run.
func CertificateDescriptor(rc *provisioning.RunContext) resource.Descriptor {
	return resource.Descriptor{
		Kind:       resource.KindCertificate,
		Name:       rc.Config.Certificate.Name,
		Parent:     rc.Outputs.KeyVault,
		Properties: rc.Config.Certificate.Policy().ToProperties(),
	}
}

// stageNative creates the certificate through the vault API and, when a
// token lifetime is configured, mints a delegated token for the container.
// No account key is ever requested.
func stageNative(rc *provisioning.RunContext, staging resource.StagingArtifact, d resource.Descriptor) (*resource.Resource, error) {
	res, err := rc.Ensure(d)
	if err != nil {
		return nil, err
	}

	ttl := rc.Config.Storage.DelegatedTokenTTL
	if ttl <= 0 {
		return res, nil
	}
	tok, err := retry.Do(rc, rc.Executor, rc.RetryPolicy(rc.Policies.Propagation), func(ctx context.Context) (resource.Token, error) {
		return rc.Cloud.IssueDelegatedToken(ctx, staging.StorageAccount, staging.Container, ttl)
	})
	if err != nil {
		return nil, fmt.Errorf("issue delegated token for %s: %w", staging.StorageAccount.Name, err)
	}
	if err := staging.CheckToken(tok, rc.Now()); err != nil {
		return nil, err
	}
	rc.Outputs.Token = &tok
	return res, nil
}

// stageInline runs the staging script with the storage account key. An
// existing certificate is accepted as is.
func stageInline(rc *provisioning.RunContext, staging resource.StagingArtifact, d resource.Descriptor) (*resource.Resource, error) {
	if !staging.AllowsAccountKey() {
		return nil, fmt.Errorf("staging artifact %s is %s and cannot use the account key", staging.StorageAccount.Name, staging.AccessMode)
	}
	policy, _ := resource.PolicyFrom(d)
	vault := *d.Parent
	result := resource.NewPendingResult(rc.Step(), d, rc.Now())

	attempts := 0
	created := false
	res, err := retry.Do(rc, rc.Executor, rc.RetryPolicy(rc.Policies.Create), func(ctx context.Context) (*resource.Resource, error) {
		attempts++
		existing, err := rc.Cloud.GetCertificate(ctx, vault, d.Name)
		if err != nil || existing != nil {
			return existing, err
		}

		provisioning.LogResourceCreating(rc.Observer, rc.Step(), string(d.Kind), d.Name)
		key, err := rc.Cloud.GetAccountKey(ctx, staging.StorageAccount)
		if err != nil {
			return nil, err
		}
		script, err := stagingScriptFor(rc, staging, d.Name, policy, key)
		if err != nil {
			return nil, retry.Fatal(err)
		}
		if _, err := rc.Cloud.RunRemoteCommand(ctx, staging.StorageAccount, script); err != nil {
			return nil, err
		}
		created = true

		cert, err := rc.Cloud.GetCertificate(ctx, vault, d.Name)
		if err != nil {
			return nil, err
		}
		if cert == nil {
			return nil, resource.NewError(resource.CodeTransient, azure.OpGetCertificate,
				fmt.Sprintf("certificate %s not visible in %s yet", d.Name, vault.Name))
		}
		return cert, nil
	})
	if err != nil {
		_ = result.Fail(err, attempts, rc.Now())
		rc.Record(result)
		rc.Metrics.RecordEnsure(d.Kind, provisioning.OutcomeFailed)
		provisioning.LogResourceFailed(rc.Observer, rc.Step(), string(d.Kind), d.Name, err)
		return nil, fmt.Errorf("stage certificate %s: %w", d.Name, err)
	}

	_ = result.Succeed(res.ID, created, attempts, rc.Now())
	rc.Record(result)
	rc.Outputs.IDs[d.Key()] = res.ID
	if created {
		rc.Metrics.RecordEnsure(d.Kind, provisioning.OutcomeCreated)
		provisioning.LogResourceCreated(rc.Observer, rc.Step(), string(d.Kind), d.Name, res.ID)
	} else {
		rc.Metrics.RecordEnsure(d.Kind, provisioning.OutcomeExists)
		provisioning.LogResourceExists(rc.Observer, rc.Step(), string(d.Kind), d.Name, res.ID)
	}
	return res, nil
}

func stagingScriptFor(rc *provisioning.RunContext, staging resource.StagingArtifact, name string, policy resource.CertificatePolicy, key string) (resource.Script, error) {
	policyJSON, err := json.Marshal(cliPolicy(policy))
	if err != nil {
		return resource.Script{}, fmt.Errorf("encode certificate policy: %w", err)
	}
	identity := staging.Identity
	return resource.Script{
		Name:    rc.Namer.Name(resource.KindCertificate, "staging"),
		Content: stagingScript,
		Env: map[string]string{
			azure.ScriptEnvVault:       rc.Outputs.KeyVault.Name,
			azure.ScriptEnvCertificate: name,
			envSubject:                 policy.Subject,
			envValidityMonths:          strconv.Itoa(policy.ValidityMonths),
			envPolicy:                  string(policyJSON),
			envAccount:                 staging.StorageAccount.Name,
			envContainer:               staging.Container,
		},
		SecureEnv: map[string]string{azure.ScriptEnvAccountKey: key},
		Identity:  &identity,
	}, nil
}

// cliPolicy renders the policy in the shape `az keyvault certificate create --policy` reads.
func cliPolicy(p resource.CertificatePolicy) map[string]any {
	x509 := map[string]any{
		"subject":          p.Subject,
		"validityInMonths": p.ValidityMonths,
		"keyUsage":         p.KeyUsage,
		"ekus":             p.EKUs,
	}
	if len(p.DNSNames) > 0 {
		x509["subjectAlternativeNames"] = map[string]any{"dnsNames": p.DNSNames}
	}
	return map[string]any{
		"issuerParameters": map[string]any{"name": "Self"},
		"keyProperties": map[string]any{
			"keyType":    p.KeyType,
			"keySize":    p.KeySize,
			"exportable": true,
			"reuseKey":   false,
		},
		"secretProperties":          map[string]any{"contentType": "application/x-pkcs12"},
		"x509CertificateProperties": x509,
	}
}

